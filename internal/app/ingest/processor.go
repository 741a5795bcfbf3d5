package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/PabloGalante/docchat/internal/domain"
)

// SupportedExtensions lists the upload types the processor accepts.
var SupportedExtensions = []string{".pdf"}

// Processor validates an upload, extracts its text and splits it into chunks.
type Processor struct {
	extractor PageExtractor
	chunker   *Chunker
	tempDir   string
}

// Option configures a Processor.
type Option func(*Processor)

// WithExtractor replaces the PDF extractor.
func WithExtractor(e PageExtractor) Option {
	return func(p *Processor) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithTempDir sets where the transient upload copy is written ("" means os.TempDir).
func WithTempDir(dir string) Option {
	return func(p *Processor) {
		p.tempDir = dir
	}
}

func NewProcessor(chunker *Chunker, opts ...Option) *Processor {
	p := &Processor{
		extractor: NewPDFExtractor(),
		chunker:   chunker,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ValidateFilename rejects any file whose extension is not supported.
func ValidateFilename(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(SupportedExtensions, ext) {
		return fmt.Errorf("%w '%s'. Supported types: %s",
			domain.ErrUnsupportedType, ext, strings.Join(SupportedExtensions, ", "))
	}
	return nil
}

// Process turns an uploaded file into chunks whose Source is filename.
// SessionID is left empty; the caller tags the chunks.
func (p *Processor) Process(ctx context.Context, content []byte, filename string) ([]domain.Chunk, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	pages, err := p.extract(ctx, content, filename)
	if err != nil {
		return nil, err
	}

	windows := p.chunker.Split(strings.Join(pages, "\n"))

	chunks := make([]domain.Chunk, 0, len(windows))
	for i, w := range windows {
		chunks = append(chunks, domain.Chunk{
			ID:     uuid.NewString(),
			Text:   w,
			Source: filename,
			Metadata: map[string]any{
				domain.MetaChunkIndex: i,
				domain.MetaPageCount:  len(pages),
			},
		})
	}
	return chunks, nil
}

// extract writes content to a private temp file for the extractor and
// removes it on every return path.
func (p *Processor) extract(ctx context.Context, content []byte, filename string) ([]string, error) {
	tmp, err := os.CreateTemp(p.tempDir, "docchat-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	pages, err := p.extractor.ExtractPages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrExtraction, filename, err)
	}
	return pages, nil
}
