package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/docchat/internal/adapters/llm"
	"github.com/PabloGalante/docchat/internal/adapters/vectorstore/memory"
	"github.com/PabloGalante/docchat/internal/app/retrieval"
	"github.com/PabloGalante/docchat/internal/domain"
)

func chunk(id, session, source, text string) domain.Chunk {
	return domain.Chunk{ID: id, Text: text, Source: source, SessionID: domain.SessionID(session)}
}

func TestStore_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	index := memory.NewIndex()
	store := retrieval.NewStore(llm.NewHashEmbedder(128), index, retrieval.Config{K: 3})

	query := "what is the return window for electronics"
	require.NoError(t, store.Add(ctx, []domain.Chunk{
		// B holds an exact copy of the query, A only loosely related text.
		chunk("b1", "B", "b.pdf", query),
		chunk("b2", "B", "b.pdf", "return window for electronics is 15 days"),
		chunk("a1", "A", "a.pdf", "Gift cards can be used online"),
		chunk("a2", "A", "a.pdf", "Electronics carry a one year warranty"),
	}))

	got, err := store.Retrieve(ctx, query, domain.SessionFilter("A"), 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, domain.SessionID("A"), c.SessionID)
		assert.Equal(t, "a.pdf", c.Source)
	}

	none, err := store.Retrieve(ctx, query, domain.SessionFilter("C"), 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_RetrieveHonoursK(t *testing.T) {
	ctx := context.Background()
	store := retrieval.NewStore(llm.NewHashEmbedder(64), memory.NewIndex(), retrieval.Config{K: 3})
	assert.Equal(t, 3, store.K())

	var chunks []domain.Chunk
	for i := range 10 {
		chunks = append(chunks, chunk(fmt.Sprintf("c%d", i), "S", "s.pdf", fmt.Sprintf("policy number %d", i)))
	}
	require.NoError(t, store.Add(ctx, chunks))

	got, err := store.Retrieve(ctx, "policy", domain.SessionFilter("S"), 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = store.Retrieve(ctx, "policy", domain.SessionFilter("S"), 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestStore_RetrieveRequiresFilter(t *testing.T) {
	store := retrieval.NewStore(llm.NewHashEmbedder(8), memory.NewIndex(), retrieval.Config{})
	_, err := store.Retrieve(context.Background(), "q", nil, 3)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// countingEmbedder fails on the n-th EmbedDocuments call.
type countingEmbedder struct {
	*llm.HashEmbedder
	calls  int
	failOn int
}

func (c *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	if c.calls == c.failOn {
		return nil, errors.New("embedding quota exceeded")
	}
	return c.HashEmbedder.EmbedDocuments(ctx, texts)
}

func TestStore_AddBatchesAndSurfacesPartialFailure(t *testing.T) {
	ctx := context.Background()
	emb := &countingEmbedder{HashEmbedder: llm.NewHashEmbedder(16), failOn: 3}
	index := memory.NewIndex()
	store := retrieval.NewStore(emb, index, retrieval.Config{BatchSize: 2})

	var chunks []domain.Chunk
	for i := range 5 {
		chunks = append(chunks, chunk(fmt.Sprintf("c%d", i), "S", "s.pdf", "text"))
	}

	err := store.Add(ctx, chunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding quota exceeded")
	assert.Equal(t, 3, emb.calls)
	assert.Equal(t, 4, index.Len(), "earlier batches stay stored; there is no rollback")
}
