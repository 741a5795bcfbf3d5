package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/docchat/internal/app/authn"
	"github.com/PabloGalante/docchat/internal/app/chat"
	"github.com/PabloGalante/docchat/internal/app/history"
	"github.com/PabloGalante/docchat/internal/app/ingest"
	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

const (
	uploadSuccessMessage  = "Document uploaded and indexed successfully."
	historyClearedMessage = "Chat history cleared."

	// multipart parts beyond this size spill to temp files.
	multipartMemory = 32 << 20
	maxChatBody     = 1 << 20
)

// Deps are the collaborators built once in main.
type Deps struct {
	Ingest  *ingest.Service
	Chat    *chat.Service
	History *history.Service
	Auth    *authn.Authenticator
	Metrics *observability.Metrics

	CORS           CORSConfig
	MaxUploadBytes int64
}

type Server struct {
	ingest  *ingest.Service
	chat    *chat.Service
	history *history.Service
	auth    *authn.Authenticator
	metrics *observability.Metrics

	maxUpload int64
}

// NewServer returns the full handler: routes plus the middleware chain.
func NewServer(d Deps) (http.Handler, error) {
	cors, err := newCORSPolicy(d.CORS)
	if err != nil {
		return nil, err
	}

	s := &Server{
		ingest:    d.Ingest,
		chat:      d.Chat,
		history:   d.History,
		auth:      d.Auth,
		metrics:   d.Metrics,
		maxUpload: d.MaxUploadBytes,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 20 << 20
	}

	mux := http.NewServeMux()

	s.route(mux, "POST /api/upload", http.HandlerFunc(s.handleUpload))
	s.route(mux, "POST /api/chat", s.optionalAuth(http.HandlerFunc(s.handleChat)))
	s.route(mux, "GET /api/chat/history", s.optionalAuth(http.HandlerFunc(s.handleGetHistory)))
	s.route(mux, "DELETE /api/chat/history", s.requireAuth(http.HandlerFunc(s.handleClearHistory)))
	s.route(mux, "GET /api/auth/me", s.requireAuth(http.HandlerFunc(s.handleMe)))
	s.route(mux, "GET /health", http.HandlerFunc(s.handleHealth))

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	// The last middleware is the outermost.
	return chainMiddlewares(mux,
		cors.handler,
		withLogging,
		withRequestID,
	), nil
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, s.instrument(pattern, h))
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type uploadResponse struct {
	Message     string `json:"message"`
	ChunksAdded int    `json:"chunks_added"`
	Filename    string `json:"filename"`
}

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []string  `json:"sources"`
	Timestamp time.Time `json:"timestamp"`
}

type historyResponse struct {
	Messages []messageResponse `json:"messages"`
}

type clearHistoryResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

type meResponse struct {
	UID     string `json:"uid"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(min(s.maxUpload, multipartMemory)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("file exceeds the %d MB upload limit", s.maxUpload>>20),
			})
			return
		}
		badRequest(w, "expected a multipart form with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()

	if err := ingest.ValidateFilename(header.Filename); err != nil {
		writeError(w, r, err)
		return
	}

	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		badRequest(w, "session_id is required")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		internalError(w, r, fmt.Errorf("reading upload: %w", err))
		return
	}

	out, err := s.ingest.Upload(r.Context(), ingest.UploadInput{
		SessionID: domain.SessionID(sessionID),
		Filename:  header.Filename,
		Content:   content,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:     uploadSuccessMessage,
		ChunksAdded: out.ChunksAdded,
		Filename:    out.Filename,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "request body too large",
			})
			return
		}
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		badRequest(w, "query is required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		badRequest(w, "session_id is required")
		return
	}

	ans, err := s.chat.Chat(r.Context(), chat.ChatInput{
		Query:     req.Query,
		SessionID: domain.SessionID(req.SessionID),
		UserID:    authn.UserID(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:  ans.Text,
		Sources: ans.Sources,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	uid := authn.UserID(r.Context())
	if uid == "" {
		writeJSON(w, http.StatusOK, historyResponse{Messages: []messageResponse{}})
		return
	}

	msgs, err := s.history.Fetch(r.Context(), uid, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{Messages: toMessagesResponse(msgs)})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := s.history.Clear(r.Context(), authn.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, clearHistoryResponse{
		Message:      historyClearedMessage,
		DeletedCount: n,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := authn.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, r, domain.ErrMissingToken)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UID:     string(id.UID),
		Email:   id.Email,
		Name:    id.Name,
		Picture: id.Picture,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─────────────────────────────────────────────
// History Helpers
// ─────────────────────────────────────────────

func toMessageResponse(m *domain.ChatMessage) messageResponse {
	sources := m.Sources
	if sources == nil {
		sources = []string{}
	}
	return messageResponse{
		ID:        string(m.ID),
		Role:      string(m.Role),
		Content:   m.Content,
		Sources:   sources,
		Timestamp: m.Timestamp,
	}
}

func toMessagesResponse(msgs []*domain.ChatMessage) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": msg,
	})
}

// internalError surfaces the upstream message; the caller sees why the
// provider call failed.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed",
		"method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": err.Error(),
	})
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrMissingToken):
		unauthorized(w, "Not authenticated.")
	case errors.Is(err, domain.ErrTokenExpired):
		unauthorized(w, "Token has expired. Please sign in again.")
	case errors.Is(err, domain.ErrTokenInvalid):
		unauthorized(w, "Invalid authentication token.")
	case errors.Is(err, domain.ErrAuthFailed):
		cause := strings.TrimPrefix(err.Error(), domain.ErrAuthFailed.Error()+": ")
		unauthorized(w, "Authentication failed: "+cause)
	default:
		internalError(w, r, err)
	}
}
