package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/docchat/internal/domain"
)

func TestIndex_FilterAndRanking(t *testing.T) {
	ctx := context.Background()
	x := NewIndex()

	require.NoError(t, x.Upsert(ctx, []domain.VectorRecord{
		{ID: "a", Text: "a", Embedding: []float32{1, 0}, Metadata: map[string]any{"session_id": "S1", "chunk_index": 0}},
		{ID: "b", Text: "b", Embedding: []float32{0.6, 0.8}, Metadata: map[string]any{"session_id": "S1", "chunk_index": 1}},
		{ID: "c", Text: "c", Embedding: []float32{1, 0}, Metadata: map[string]any{"session_id": "S2"}},
	}))

	got, err := x.Query(ctx, []float32{0, 1}, domain.SessionFilter("S1"), 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.InDelta(t, 0.8, got[0].Score, 1e-6)
	assert.Equal(t, "a", got[1].ID)

	got, err = x.Query(ctx, []float32{0, 1}, domain.Filter{"chunk_index": "1"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	got, err = x.Query(ctx, []float32{1, 0}, domain.SessionFilter("S1"), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestIndex_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	x := NewIndex()

	require.NoError(t, x.Upsert(ctx, []domain.VectorRecord{{ID: "a", Text: "old", Embedding: []float32{1}}}))
	require.NoError(t, x.Upsert(ctx, []domain.VectorRecord{{ID: "a", Text: "new", Embedding: []float32{1}}}))
	assert.Equal(t, 1, x.Len())

	got, err := x.Query(ctx, []float32{1}, nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Text)

	assert.Error(t, x.Upsert(ctx, []domain.VectorRecord{{Text: "no id"}}))
}
