// Package gateway wires the validator, rate limiters, session store, and
// proxy client into the HTTP routes. Handlers orchestrate and shape
// responses; the business rules live in the components they call.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neel92654/PDF-QA-Bot/internal/audit"
	"github.com/neel92654/PDF-QA-Bot/internal/ragclient"
	"github.com/neel92654/PDF-QA-Bot/internal/ratelimit"
	"github.com/neel92654/PDF-QA-Bot/internal/server"
	"github.com/neel92654/PDF-QA-Bot/internal/session"
	"github.com/neel92654/PDF-QA-Bot/internal/upload"
)

// RAGService is the forwarding capability handlers depend on. Keeping it an
// interface lets tests substitute a stub for the HTTP client.
type RAGService interface {
	Upload(ctx context.Context, file io.Reader, filename, sessionID string) (*ragclient.UploadResult, error)
	Ask(ctx context.Context, req ragclient.AskRequest) (*ragclient.AskResult, error)
	Summarize(ctx context.Context, sessionIDs []string) (*ragclient.SummarizeResult, error)
	Compare(ctx context.Context, sessionIDs []string) (*ragclient.CompareResult, error)
	CheckHealth(ctx context.Context) error
}

// Limiters holds the per-route budgets. Routes are independent: draining
// the upload budget leaves the others untouched.
type Limiters struct {
	Upload    *ratelimit.Limiter
	Ask       *ratelimit.Limiter
	Summarize *ratelimit.Limiter
	Compare   *ratelimit.Limiter
}

type Handler struct {
	validator *upload.Validator
	sessions  *session.Store
	rag       RAGService
	recorder  audit.Recorder
	logger    *slog.Logger
}

func NewHandler(validator *upload.Validator, sessions *session.Store, rag RAGService, recorder audit.Recorder, logger *slog.Logger) *Handler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		validator: validator,
		sessions:  sessions,
		rag:       rag,
		recorder:  recorder,
		logger:    logger,
	}
}

// RegisterRoutes mounts every gateway route. The anonymous upload alias
// shares the upload budget.
func (h *Handler) RegisterRoutes(r chi.Router, lim Limiters, identity server.IdentityFunc) {
	r.With(server.RateLimitMiddleware("upload", lim.Upload, identity)).Post("/upload", h.HandleUpload)
	r.With(server.RateLimitMiddleware("upload", lim.Upload, identity)).Post("/upload/anonymous", h.HandleUpload)
	r.With(server.RateLimitMiddleware("ask", lim.Ask, identity)).Post("/ask", h.HandleAsk)
	r.With(server.RateLimitMiddleware("summarize", lim.Summarize, identity)).Post("/summarize", h.HandleSummarize)
	r.With(server.RateLimitMiddleware("compare", lim.Compare, identity)).Post("/compare", h.HandleCompare)
	r.Post("/clear-history", h.HandleClearHistory)
	r.Get("/healthz", h.HandleHealthz)
	r.Get("/health", h.HandleHealth)
	r.Get("/readyz", h.HandleReadyz)
}

// HandleClearHistory empties a session's conversation. Documents stay
// associated: clearing is a conversational reset, and a later ask against
// the same documents still works.
func (h *Handler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := clearSessionID(r)
	if sessionID != "" && session.ValidID(sessionID) {
		h.sessions.Clear(sessionID)
		server.AddLogField(r.Context(), "session_id", sessionID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "history cleared"})
}

// clearSessionID finds the session identity for /clear-history: an
// explicit header, the session cookie, or a body field, in that order.
func clearSessionID(r *http.Request) string {
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	if cookie, err := r.Cookie("session_id"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body struct {
		SessionID    string `json:"session_id"`
		SessionIDAlt string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		if body.SessionID != "" {
			return body.SessionID
		}
		return body.SessionIDAlt
	}
	return ""
}

// HandleHealthz is the liveness probe; it never fails.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleHealth is the legacy health endpoint kept for backward
// compatibility.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadyz reflects downstream reachability with a bounded probe.
func (h *Handler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	err := h.rag.CheckHealth(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ready",
			"dependencies": map[string]string{"rag_service": "ok"},
		})
		return
	}

	server.AddError(r.Context(), err)
	state := "unreachable"
	var dsErr *ragclient.DownstreamError
	if errors.As(err, &dsErr) {
		state = "unhealthy"
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{
		"status":       "not_ready",
		"dependencies": map[string]string{"rag_service": state},
	})
}

// record persists a proxied call's outcome; failures are logged only.
func (h *Handler) record(ctx context.Context, route, sessionID string, docIDs []string, status int, errorClass string, start time.Time) {
	call := audit.ProxyCall{
		RequestID:  server.GetRequestID(ctx),
		Route:      route,
		SessionID:  sessionID,
		DocIDs:     docIDs,
		Status:     status,
		ErrorClass: errorClass,
		Duration:   time.Since(start),
	}
	if err := h.recorder.Record(ctx, call); err != nil {
		h.logger.Warn("failed to record proxy call",
			slog.String("route", route),
			slog.String("error", err.Error()),
		)
	}
}

// resolveSessions normalizes the body's session identity fields into a
// list of well-formed gateway session ids.
func resolveSessions(single string, many []string) ([]string, bool) {
	ids := many
	if len(ids) == 0 && single != "" {
		ids = []string{single}
	}
	for _, id := range ids {
		if !session.ValidID(id) {
			return nil, false
		}
	}
	return ids, true
}

// resolveTargets expands gateway sessions into the downstream document ids
// they reference, merged with any explicitly requested doc ids.
func (h *Handler) resolveTargets(sessionIDs, docIDs []string) []string {
	seen := make(map[string]struct{}, len(docIDs))
	targets := make([]string, 0, len(docIDs))
	add := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	for _, id := range docIDs {
		add(id)
	}
	for _, sid := range sessionIDs {
		for _, doc := range h.sessions.Documents(sid) {
			add(doc)
		}
	}
	return targets
}
