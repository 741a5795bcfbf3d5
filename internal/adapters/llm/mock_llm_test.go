package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLLM_RecordsPrompts(t *testing.T) {
	m := NewMockLLM()
	assert.Equal(t, 0, m.Calls())
	assert.Empty(t, m.LastPrompt())

	out, err := m.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, 1, m.Calls())
	assert.Equal(t, "hello", m.LastPrompt())

	m.Err = errors.New("quota exceeded")
	_, err = m.Generate(context.Background(), "again")
	assert.EqualError(t, err, "quota exceeded")
	assert.Equal(t, 2, m.Calls())
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	h := NewHashEmbedder(64)
	ctx := context.Background()

	docs, err := h.EmbedDocuments(ctx, []string{"Store hours are 9 to 5", "Refund policy"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Len(t, docs[0], 64)

	q, err := h.EmbedQuery(ctx, "store hours are 9 to 5")
	require.NoError(t, err)
	assert.Equal(t, docs[0], q, "case must not matter")

	empty, err := h.EmbedQuery(ctx, "   ")
	require.NoError(t, err)
	assert.Len(t, empty, 64)
}
