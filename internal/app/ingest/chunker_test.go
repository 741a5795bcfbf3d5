package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker_Validation(t *testing.T) {
	_, err := NewChunker(0, 0)
	assert.Error(t, err)

	_, err = NewChunker(100, -1)
	assert.Error(t, err)

	_, err = NewChunker(100, 100)
	assert.Error(t, err)

	c, err := NewChunker(100, 20)
	require.NoError(t, err)
	assert.Equal(t, 100, c.Size())
	assert.Equal(t, 20, c.Overlap())
}

func TestChunker_ShortTextIsOneChunk(t *testing.T) {
	c, err := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	got := c.Split("Returns are accepted within 30 days.")
	assert.Equal(t, []string{"Returns are accepted within 30 days."}, got)

	exact := strings.Repeat("a", DefaultChunkSize)
	assert.Len(t, c.Split(exact), 1)
}

func TestChunker_EmptyText(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("  \n\t "))
}

func TestChunker_WindowsAndOverlap(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
	}{
		{"ascii", 10, 3, "abcdefghijklmnopqrstuvwxyz0123456789"},
		{"no overlap", 8, 0, strings.Repeat("store policy ", 7)},
		{"multibyte", 6, 2, "ñandú über café déjà vu – naïve façade"},
		{"defaults", DefaultChunkSize, DefaultChunkOverlap, strings.Repeat("Inventory is counted weekly. ", 150)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			require.NoError(t, err)

			chunks := c.Split(tt.text)
			require.Greater(t, len(chunks), 1)

			for i, ch := range chunks {
				n := utf8.RuneCountInString(ch)
				if i < len(chunks)-1 {
					assert.Equal(t, tt.size, n, "chunk %d must be full size", i)
				} else {
					assert.LessOrEqual(t, n, tt.size)
				}
			}

			for i := 0; i+1 < len(chunks); i++ {
				prev := []rune(chunks[i])
				next := []rune(chunks[i+1])
				assert.Equal(t,
					string(prev[len(prev)-tt.overlap:]),
					string(next[:tt.overlap]),
					"chunks %d and %d must share exactly %d characters", i, i+1, tt.overlap)
			}

			// Dropping the overlap from every chunk but the first rebuilds the text.
			var rebuilt strings.Builder
			rebuilt.WriteString(chunks[0])
			for _, ch := range chunks[1:] {
				rebuilt.WriteString(string([]rune(ch)[tt.overlap:]))
			}
			assert.Equal(t, tt.text, rebuilt.String())
		})
	}
}
