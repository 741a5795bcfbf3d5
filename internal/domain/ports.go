package domain

import "context"

// LLMClient defines how the core application asks a language model for text.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into vectors. Documents and queries are embedded
// separately because providers tune them for different retrieval roles.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is a remote (or in-process) nearest-neighbor store.
type VectorIndex interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, filter Filter, k int) ([]VectorMatch, error)
}

// HistoryStore persists a per-user message log.
type HistoryStore interface {
	SaveMessage(ctx context.Context, userID UserID, msg *ChatMessage) (MessageID, error)
	ListMessages(ctx context.Context, userID UserID, limit int) ([]*ChatMessage, error)
	DeleteMessages(ctx context.Context, userID UserID) (int, error)
}

// TokenVerifier validates a bearer token against the identity provider.
// Implementations return errors wrapping ErrTokenExpired, ErrTokenInvalid or ErrAuthFailed.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}
