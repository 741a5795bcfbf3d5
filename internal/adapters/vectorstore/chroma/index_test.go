package chroma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/docchat/internal/domain"
)

const dbPath = "/api/v2/tenants/acme/databases/prod"

// fakeChroma records the decoded request bodies per path.
type fakeChroma struct {
	mu     sync.Mutex
	bodies map[string]map[string]any
	tokens []string

	queryStatus int
	queryReply  string
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.bodies[r.URL.Path] = body
	f.tokens = append(f.tokens, r.Header.Get("x-chroma-token"))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case dbPath + "/collections":
		_, _ = w.Write([]byte(`{"id":"col-123","name":"retail_chatbot_collection"}`))
	case dbPath + "/collections/col-123/upsert":
		_, _ = w.Write([]byte(`true`))
	case dbPath + "/collections/col-123/query":
		f.mu.Lock()
		status, reply := f.queryStatus, f.queryReply
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
		}
		_, _ = w.Write([]byte(reply))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"NotFound","message":"no route"}`))
	}
}

func (f *fakeChroma) body(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeChroma) reply(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryStatus, f.queryReply = status, body
}

func newFake(t *testing.T) (*fakeChroma, *Index) {
	t.Helper()

	fake := &fakeChroma{bodies: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := New(context.Background(), Config{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		Tenant:     "acme",
		Database:   "prod",
		Collection: "retail_chatbot_collection",
	})
	require.NoError(t, err)
	return fake, idx
}

func TestNew_GetsOrCreatesCollection(t *testing.T) {
	fake, idx := newFake(t)

	assert.Equal(t, "col-123", idx.CollectionID())

	body := fake.body(dbPath + "/collections")
	assert.Equal(t, "retail_chatbot_collection", body["name"])
	assert.Equal(t, true, body["get_or_create"])
	assert.Equal(t, []string{"secret"}, fake.tokens)
}

func TestNew_MissingConfig(t *testing.T) {
	_, err := New(context.Background(), Config{BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestUpsert_SendsColumnarBody(t *testing.T) {
	fake, idx := newFake(t)

	err := idx.Upsert(context.Background(), []domain.VectorRecord{
		{ID: "c1", Text: "first", Embedding: []float32{1, 0}, Metadata: map[string]any{"session_id": "S1"}},
		{ID: "c2", Text: "second", Embedding: []float32{0, 1}, Metadata: map[string]any{"session_id": "S2"}},
	})
	require.NoError(t, err)

	body := fake.body(dbPath + "/collections/col-123/upsert")
	require.NotNil(t, body)
	assert.Equal(t, []any{"c1", "c2"}, body["ids"])
	assert.Equal(t, []any{"first", "second"}, body["documents"])
	assert.Len(t, body["embeddings"], 2)
	assert.Len(t, body["metadatas"], 2)
}

func TestQuery_SessionFilterAndDecoding(t *testing.T) {
	fake, idx := newFake(t)
	fake.reply(0, `{
		"ids": [["c1", "c2"]],
		"documents": [["refunds within 30 days", null]],
		"metadatas": [[{"session_id":"S1","source":"policy.pdf"}, {"session_id":"S1"}]],
		"distances": [[0.25, 0.5]]
	}`)

	matches, err := idx.Query(context.Background(), []float32{0.1, 0.2}, domain.SessionFilter("S1"), 3)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "c1", matches[0].ID)
	assert.Equal(t, "refunds within 30 days", matches[0].Text)
	assert.InDelta(t, 0.75, matches[0].Score, 1e-9)
	assert.Equal(t, "policy.pdf", matches[0].Metadata["source"])
	assert.Equal(t, "", matches[1].Text)

	body := fake.body(dbPath + "/collections/col-123/query")
	assert.Equal(t, float64(3), body["n_results"])
	assert.Equal(t, map[string]any{"session_id": "S1"}, body["where"])
	assert.Equal(t, []any{"documents", "metadatas", "distances"}, body["include"])
}

func TestQuery_EmptyResult(t *testing.T) {
	fake, idx := newFake(t)
	fake.reply(0, `{"ids":[[]],"documents":[[]],"metadatas":[[]],"distances":[[]]}`)

	matches, err := idx.Query(context.Background(), []float32{1}, domain.SessionFilter("S9"), 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestQuery_ServerError(t *testing.T) {
	fake, idx := newFake(t)
	fake.reply(http.StatusBadRequest, `{"error":"InvalidArgumentError","message":"bad where clause"}`)

	_, err := idx.Query(context.Background(), []float32{1}, domain.SessionFilter("S1"), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "bad where clause")
}

func TestWhereClause(t *testing.T) {
	assert.Nil(t, whereClause(nil))
	assert.Equal(t,
		map[string]any{"session_id": "S1"},
		whereClause(domain.Filter{"session_id": "S1"}))
	assert.Equal(t,
		map[string]any{"$and": []map[string]any{{"session_id": "S1"}, {"source": "a.pdf"}}},
		whereClause(domain.Filter{"source": "a.pdf", "session_id": "S1"}))
}
