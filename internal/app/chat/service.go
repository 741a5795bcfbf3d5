package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

// Retriever returns session-scoped chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, filter domain.Filter, k int) ([]domain.Chunk, error)
}

// Recorder persists exchanges for signed-in users.
type Recorder interface {
	Save(ctx context.Context, userID domain.UserID, role domain.Role, content string, sources []string) (domain.MessageID, error)
}

type Service struct {
	retriever Retriever
	llm       domain.LLMClient
	history   Recorder
	k         int
	metrics   *observability.Metrics
}

// NewService wires the chat use case. history may be nil, in which case
// exchanges are never persisted.
func NewService(
	retriever Retriever,
	llm domain.LLMClient,
	history Recorder,
	k int,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		retriever: retriever,
		llm:       llm,
		history:   history,
		k:         k,
		metrics:   metrics,
	}
}

type Answer struct {
	Text    string
	Sources []string
}

// Answer runs retrieval-augmented generation for one question, looking
// only at chunks uploaded under sessionID.
func (s *Service) Answer(ctx context.Context, query string, sessionID domain.SessionID) (*Answer, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	chunks, err := s.retriever.Retrieve(ctx, query, domain.SessionFilter(sessionID), s.k)
	if err != nil {
		s.metrics.ObserveAnswer(observability.OutcomeError)
		log.Error("retrieval failed", "error", err)
		return nil, err
	}

	if len(chunks) == 0 {
		s.metrics.ObserveAnswer(observability.OutcomeNoDocs)
		log.Info("no chunks for session, skipping generation")
		return &Answer{Text: NoDocumentsAnswer, Sources: []string{}}, nil
	}

	text, err := s.llm.Generate(ctx, BuildPrompt(query, chunks))
	if err != nil {
		s.metrics.ObserveAnswer(observability.OutcomeError)
		log.Error("generation failed", "error", err)
		return nil, err
	}
	s.metrics.ObserveAnswer(observability.OutcomeAnswered)

	sources := Sources(chunks)
	log.Info("answer generated", "chunks", len(chunks), "sources", len(sources))

	return &Answer{Text: text, Sources: sources}, nil
}

type ChatInput struct {
	Query     string
	SessionID domain.SessionID
	// UserID is empty for anonymous callers; their exchanges are not saved.
	UserID domain.UserID
}

// Chat answers a question and, for signed-in users, saves the user
// message before answering and the assistant message afterwards.
func (s *Service) Chat(ctx context.Context, in ChatInput) (*Answer, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(string(in.SessionID)) == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput)
	}

	record := in.UserID != "" && s.history != nil

	if record {
		if _, err := s.history.Save(ctx, in.UserID, domain.RoleUser, in.Query, nil); err != nil {
			return nil, fmt.Errorf("saving user message: %w", err)
		}
	}

	ans, err := s.Answer(ctx, in.Query, in.SessionID)
	if err != nil {
		return nil, err
	}

	if record {
		if _, err := s.history.Save(ctx, in.UserID, domain.RoleAssistant, ans.Text, ans.Sources); err != nil {
			return nil, fmt.Errorf("saving assistant message: %w", err)
		}
	}

	return ans, nil
}
