package retrieval

import (
	"context"
	"fmt"

	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

const (
	DefaultK         = 3
	DefaultBatchSize = 100
)

// Store is the vector store client used by the application: it owns the
// embedding step and delegates storage and nearest-neighbor search to a
// domain.VectorIndex. Nothing is cached; every call reaches the backend.
type Store struct {
	embedder  domain.Embedder
	index     domain.VectorIndex
	batchSize int
	k         int
}

type Config struct {
	BatchSize int
	K         int
}

func NewStore(embedder domain.Embedder, index domain.VectorIndex, cfg Config) *Store {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	return &Store{
		embedder:  embedder,
		index:     index,
		batchSize: cfg.BatchSize,
		k:         cfg.K,
	}
}

// K is the configured number of chunks returned when Retrieve gets k <= 0.
func (s *Store) K() int {
	return s.k
}

// Add embeds and stores chunks batch by batch. A failure in a later batch
// leaves earlier batches stored.
func (s *Store) Add(ctx context.Context, chunks []domain.Chunk) error {
	log := observability.LoggerFromContext(ctx)

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding chunks %d-%d: got %d vectors for %d texts", start, end-1, len(vectors), len(batch))
		}

		records := make([]domain.VectorRecord, len(batch))
		for i, c := range batch {
			records[i] = domain.RecordFromChunk(c, vectors[i])
		}
		if err := s.index.Upsert(ctx, records); err != nil {
			return fmt.Errorf("storing chunks %d-%d: %w", start, end-1, err)
		}

		log.Debug("stored chunk batch", "from", start, "to", end-1)
	}
	return nil
}

// Retrieve returns up to k chunks most similar to query among those whose
// metadata matches filter exactly, in the order the index ranks them.
func (s *Store) Retrieve(ctx context.Context, query string, filter domain.Filter, k int) ([]domain.Chunk, error) {
	if len(filter) == 0 {
		return nil, fmt.Errorf("%w: a metadata filter is required", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = s.k
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := s.index.Query(ctx, vector, filter, k)
	if err != nil {
		return nil, fmt.Errorf("searching vector store: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(matches))
	for _, m := range matches {
		chunks = append(chunks, domain.ChunkFromMatch(m))
	}
	return chunks, nil
}
