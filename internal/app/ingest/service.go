package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

// ChunkWriter stores chunks in the vector store.
type ChunkWriter interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
}

// Service is the upload use case: process a file and index it under a session.
type Service struct {
	processor *Processor
	store     ChunkWriter
	metrics   *observability.Metrics
}

func NewService(processor *Processor, store ChunkWriter, metrics *observability.Metrics) *Service {
	return &Service{
		processor: processor,
		store:     store,
		metrics:   metrics,
	}
}

type UploadInput struct {
	SessionID domain.SessionID
	Filename  string
	Content   []byte
}

type UploadOutput struct {
	Filename    string
	ChunksAdded int
}

func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadOutput, error) {
	if strings.TrimSpace(string(in.SessionID)) == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput)
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", in.SessionID,
		"filename", in.Filename,
	)
	log.Info("processing upload", "bytes", len(in.Content))

	chunks, err := s.processor.Process(ctx, in.Content, in.Filename)
	if err != nil {
		log.Error("failed to process upload", "error", err)
		return nil, err
	}

	for i := range chunks {
		chunks[i].SessionID = in.SessionID
	}

	if err := s.store.Add(ctx, chunks); err != nil {
		log.Error("failed to index chunks", "error", err, "chunks", len(chunks))
		return nil, err
	}
	s.metrics.ObserveChunks(len(chunks))

	log.Info("upload indexed", "chunks", len(chunks))

	return &UploadOutput{
		Filename:    in.Filename,
		ChunksAdded: len(chunks),
	}, nil
}
