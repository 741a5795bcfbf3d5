package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/docchat/internal/domain"
)

const (
	collectionSessions = "chat_sessions"
	collectionMessages = "messages"

	fieldRole      = "role"
	fieldContent   = "content"
	fieldSources   = "sources"
	fieldTimestamp = "timestamp"
)

// Store is the Firestore-backed domain.HistoryStore. Each user owns the
// sub-collection chat_sessions/{uid}/messages with auto-generated ids.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for projectID. opts carry credentials
// (file or inline JSON); none means application default credentials.
func NewStore(ctx context.Context, projectID string, opts ...option.ClientOption) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) messagesCol(userID domain.UserID) *firestore.CollectionRef {
	return s.client.Collection(collectionSessions).Doc(string(userID)).Collection(collectionMessages)
}

// messagePayload leaves "sources" out entirely when the message has none,
// so that readers can tell "no sources field" from "empty sources".
func messagePayload(msg *domain.ChatMessage) map[string]any {
	payload := map[string]any{
		fieldRole:      string(msg.Role),
		fieldContent:   msg.Content,
		fieldTimestamp: firestore.ServerTimestamp,
	}
	if msg.Sources != nil {
		payload[fieldSources] = msg.Sources
	}
	return payload
}

func decodeMessage(snap *firestore.DocumentSnapshot) (*domain.ChatMessage, error) {
	data := snap.Data()

	msg := &domain.ChatMessage{
		ID: domain.MessageID(snap.Ref.ID),
	}
	if v, ok := data[fieldRole].(string); ok {
		msg.Role = domain.Role(v)
	}
	if v, ok := data[fieldContent].(string); ok {
		msg.Content = v
	}
	if v, ok := data[fieldTimestamp].(time.Time); ok {
		msg.Timestamp = v
	}
	if raw, ok := data[fieldSources]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("message %s: sources has type %T", snap.Ref.ID, raw)
		}
		msg.Sources = make([]string, 0, len(list))
		for _, item := range list {
			if src, ok := item.(string); ok {
				msg.Sources = append(msg.Sources, src)
			}
		}
	}
	return msg, nil
}

// ─────────────────────────────────────────
// HistoryStore implementation
// ─────────────────────────────────────────

func (s *Store) SaveMessage(ctx context.Context, userID domain.UserID, msg *domain.ChatMessage) (domain.MessageID, error) {
	ref := s.messagesCol(userID).NewDoc()

	if _, err := ref.Set(ctx, messagePayload(msg)); err != nil {
		return "", fmt.Errorf("firestore SaveMessage: %w", err)
	}
	return domain.MessageID(ref.ID), nil
}

// ListMessages takes the newest `limit` messages by server timestamp and
// returns them oldest first.
func (s *Store) ListMessages(ctx context.Context, userID domain.UserID, limit int) ([]*domain.ChatMessage, error) {
	q := s.messagesCol(userID).OrderBy(fieldTimestamp, firestore.Asc)
	if limit > 0 {
		q = q.LimitToLast(limit)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return []*domain.ChatMessage{}, nil
		}
		return nil, fmt.Errorf("firestore ListMessages: %w", err)
	}

	out := make([]*domain.ChatMessage, 0, len(snaps))
	for _, snap := range snaps {
		msg, err := decodeMessage(snap)
		if err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// DeleteMessages enumerates the user's messages and deletes them through a
// bulk writer. This is not atomic: a message written after the enumeration
// survives the clear.
func (s *Store) DeleteMessages(ctx context.Context, userID domain.UserID) (int, error) {
	iter := s.messagesCol(userID).DocumentRefs(ctx)

	var refs []*firestore.DocumentRef
	for {
		ref, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return 0, nil
			}
			return 0, fmt.Errorf("firestore DeleteMessages list: %w", err)
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("firestore DeleteMessages enqueue: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return 0, fmt.Errorf("firestore DeleteMessages: %w", err)
		}
	}
	return len(refs), nil
}
