package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/docchat/internal/domain"
)

type recordingWriter struct {
	got []domain.Chunk
	err error
}

func (w *recordingWriter) Add(_ context.Context, chunks []domain.Chunk) error {
	w.got = append(w.got, chunks...)
	return w.err
}

func TestUpload_TagsSessionAndCounts(t *testing.T) {
	ext := &fakeExtractor{pages: []string{strings.Repeat("Gift cards never expire. ", 20)}}
	writer := &recordingWriter{}
	svc := NewService(newTestProcessor(t, ext, 100, 25), writer, nil)

	out, err := svc.Upload(context.Background(), UploadInput{
		SessionID: "sess-a",
		Filename:  "giftcards.pdf",
		Content:   []byte("%PDF"),
	})
	require.NoError(t, err)

	assert.Equal(t, "giftcards.pdf", out.Filename)
	assert.Equal(t, len(writer.got), out.ChunksAdded)
	require.NotEmpty(t, writer.got)
	for _, c := range writer.got {
		assert.Equal(t, domain.SessionID("sess-a"), c.SessionID)
		assert.Equal(t, "giftcards.pdf", c.Source)
	}
}

func TestUpload_RequiresSession(t *testing.T) {
	svc := NewService(newTestProcessor(t, &fakeExtractor{}, 100, 10), &recordingWriter{}, nil)

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "a.pdf", Content: []byte("%PDF")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpload_StoreFailureSurfaces(t *testing.T) {
	ext := &fakeExtractor{pages: []string{"Some text"}}
	writer := &recordingWriter{err: errors.New("chroma: 503")}
	svc := NewService(newTestProcessor(t, ext, 100, 10), writer, nil)

	_, err := svc.Upload(context.Background(), UploadInput{SessionID: "s", Filename: "a.pdf", Content: []byte("%PDF")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chroma: 503")
}
