package chroma

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/PabloGalante/docchat/internal/domain"
)

const tokenHeader = "x-chroma-token"

type Config struct {
	BaseURL    string
	APIKey     string
	Tenant     string
	Database   string
	Collection string
	Timeout    time.Duration
	// RetryCount applies to network errors, 429 and 5xx responses.
	RetryCount int
}

// Index is a domain.VectorIndex backed by a Chroma collection reached over
// the v2 HTTP API.
type Index struct {
	client       *resty.Client
	cfg          Config
	collectionID string
}

// New connects to Chroma and gets or creates the configured collection.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("chroma: base url is required")
	}
	if cfg.Tenant == "" || cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New("chroma: tenant, database and collection are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	if cfg.APIKey != "" {
		client.SetHeader(tokenHeader, cfg.APIKey)
	}
	client.AddRetryCondition(retryCondition)

	idx := &Index{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429
}

// CollectionID is the server-side id of the resolved collection.
func (x *Index) CollectionID() string {
	return x.collectionID
}

// ─────────────────────────────────────────
// Wire types
// ─────────────────────────────────────────

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type collectionRequest struct {
	Name        string         `json:"name"`
	GetOrCreate bool           `json:"get_or_create"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]*float64       `json:"distances"`
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (x *Index) databasePath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s",
		url.PathEscape(x.cfg.Tenant), url.PathEscape(x.cfg.Database))
}

func (x *Index) collectionPath(action string) string {
	return fmt.Sprintf("%s/collections/%s/%s", x.databasePath(), url.PathEscape(x.collectionID), action)
}

func responseError(op string, resp *resty.Response, apiErr *apiError) error {
	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Error
	}
	if msg == "" {
		msg = resp.String()
	}
	return fmt.Errorf("chroma %s: status %d: %s", op, resp.StatusCode(), msg)
}

// whereClause turns an exact-match filter into Chroma's where syntax.
// Several keys are combined with $and, in key order.
func whereClause(filter domain.Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	if len(keys) == 1 {
		return map[string]any{keys[0]: filter[keys[0]]}
	}
	clauses := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, map[string]any{k: filter[k]})
	}
	return map[string]any{"$and": clauses}
}

func (x *Index) ensureCollection(ctx context.Context) error {
	var (
		out    collectionResponse
		apiErr apiError
	)
	resp, err := x.client.R().
		SetContext(ctx).
		SetBody(collectionRequest{
			Name:        x.cfg.Collection,
			GetOrCreate: true,
			Metadata:    map[string]any{"hnsw:space": "cosine"},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post(x.databasePath() + "/collections")
	if err != nil {
		return fmt.Errorf("chroma get or create collection: %w", err)
	}
	if resp.IsError() {
		return responseError("get or create collection", resp, &apiErr)
	}
	if out.ID == "" {
		return fmt.Errorf("chroma get or create collection: empty id for %q", x.cfg.Collection)
	}
	x.collectionID = out.ID
	return nil
}

// ─────────────────────────────────────────
// VectorIndex implementation
// ─────────────────────────────────────────

func (x *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	body := upsertRequest{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Documents:  make([]string, len(records)),
		Metadatas:  make([]map[string]any, len(records)),
	}
	for i, r := range records {
		body.IDs[i] = r.ID
		body.Embeddings[i] = r.Embedding
		body.Documents[i] = r.Text
		body.Metadatas[i] = r.Metadata
	}

	var apiErr apiError
	resp, err := x.client.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr).
		Post(x.collectionPath("upsert"))
	if err != nil {
		return fmt.Errorf("chroma upsert: %w", err)
	}
	if resp.IsError() {
		return responseError("upsert", resp, &apiErr)
	}
	return nil
}

// Query returns the k nearest records matching filter. Scores are cosine
// similarities derived from the collection's cosine distances.
func (x *Index) Query(ctx context.Context, vector []float32, filter domain.Filter, k int) ([]domain.VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	var (
		out    queryResponse
		apiErr apiError
	)
	resp, err := x.client.R().
		SetContext(ctx).
		SetBody(queryRequest{
			QueryEmbeddings: [][]float32{vector},
			NResults:        k,
			Where:           whereClause(filter),
			Include:         []string{"documents", "metadatas", "distances"},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post(x.collectionPath("query"))
	if err != nil {
		return nil, fmt.Errorf("chroma query: %w", err)
	}
	if resp.IsError() {
		return nil, responseError("query", resp, &apiErr)
	}

	if len(out.IDs) == 0 {
		return nil, nil
	}
	ids := out.IDs[0]
	matches := make([]domain.VectorMatch, 0, len(ids))
	for i, id := range ids {
		m := domain.VectorMatch{ID: id}
		if len(out.Documents) > 0 && i < len(out.Documents[0]) && out.Documents[0][i] != nil {
			m.Text = *out.Documents[0][i]
		}
		if len(out.Metadatas) > 0 && i < len(out.Metadatas[0]) {
			m.Metadata = out.Metadatas[0][i]
		}
		if len(out.Distances) > 0 && i < len(out.Distances[0]) && out.Distances[0][i] != nil {
			m.Score = 1 - *out.Distances[0][i]
		}
		matches = append(matches, m)
	}
	return matches, nil
}
