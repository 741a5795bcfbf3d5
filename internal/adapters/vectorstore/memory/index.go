package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/PabloGalante/docchat/internal/domain"
)

// Index is an in-process domain.VectorIndex using cosine similarity.
// It is NOT persistent and is only suitable for development / local mode.
type Index struct {
	mu      sync.RWMutex
	records map[string]domain.VectorRecord
	order   []string
}

func NewIndex() *Index {
	return &Index{
		records: make(map[string]domain.VectorRecord),
	}
}

func (x *Index) Upsert(_ context.Context, records []domain.VectorRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("memory index: record without id")
		}
		if _, exists := x.records[r.ID]; !exists {
			x.order = append(x.order, r.ID)
		}
		x.records[r.ID] = r
	}
	return nil
}

func (x *Index) Query(_ context.Context, vector []float32, filter domain.Filter, k int) ([]domain.VectorMatch, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var matches []domain.VectorMatch
	for _, id := range x.order {
		r := x.records[id]
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		matches = append(matches, domain.VectorMatch{
			ID:       r.ID,
			Text:     r.Text,
			Score:    cosine(vector, r.Embedding),
			Metadata: r.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len returns the number of stored records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

func matchesFilter(meta map[string]any, filter domain.Filter) bool {
	for key, want := range filter {
		got, ok := meta[key]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
