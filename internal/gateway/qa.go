package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/neel92654/PDF-QA-Bot/internal/domain"
	"github.com/neel92654/PDF-QA-Bot/internal/ragclient"
	"github.com/neel92654/PDF-QA-Bot/internal/server"
	"github.com/neel92654/PDF-QA-Bot/internal/session"
)

// askRequest accepts both the single-session and multi-session body
// shapes; DocIDs lets callers target downstream documents directly.
type askRequest struct {
	Question   string   `json:"question"`
	SessionID  string   `json:"session_id"`
	SessionIDs []string `json:"session_ids"`
	DocIDs     []string `json:"doc_ids"`
}

type askResponse struct {
	Answer          string            `json:"answer"`
	ConfidenceScore *float64          `json:"confidence_score,omitempty"`
	Citations       []domain.Citation `json:"citations,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
}

type selectionRequest struct {
	SessionID  string   `json:"session_id"`
	SessionIDs []string `json:"session_ids"`
	DocIDs     []string `json:"doc_ids"`
}

// HandleAsk forwards a question about previously uploaded documents and
// threads the answer into the session history.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("malformed request body"))
		h.record(r.Context(), "ask", "", nil, status, class, start)
		return
	}
	if req.Question == "" {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("question is required"))
		h.record(r.Context(), "ask", "", nil, status, class, start)
		return
	}

	sessionIDs, ok := resolveSessions(req.SessionID, req.SessionIDs)
	if !ok {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("malformed session id"))
		h.record(r.Context(), "ask", "", nil, status, class, start)
		return
	}
	if len(sessionIDs) == 0 && len(req.DocIDs) == 0 {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("missing session_ids"))
		h.record(r.Context(), "ask", "", nil, status, class, start)
		return
	}

	targets := h.resolveTargets(sessionIDs, req.DocIDs)
	if len(targets) == 0 {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("no documents uploaded for the given sessions"))
		h.record(r.Context(), "ask", firstOrEmpty(sessionIDs), nil, status, class, start)
		return
	}

	// History is owned by the first session when the ask spans several.
	historySession := firstOrEmpty(sessionIDs)
	var history []domain.ChatTurn
	var exchange *session.ExchangeRef
	if historySession != "" {
		server.AddLogField(r.Context(), "session_id", historySession)
		history = h.sessions.History(historySession)
		exchange = h.sessions.BeginExchange(historySession, domain.ChatTurn{
			Role:    domain.RoleUser,
			Content: req.Question,
		})
	}

	result, err := h.rag.Ask(r.Context(), ragclient.AskRequest{
		Question:   req.Question,
		SessionIDs: targets,
		History:    history,
	})
	if err != nil {
		status, class := h.writeError(w, r, err)
		h.record(r.Context(), "ask", historySession, targets, status, class, start)
		return
	}

	if exchange != nil {
		exchange.Complete(domain.ChatTurn{
			Role:       domain.RoleAssistant,
			Content:    result.Answer,
			Confidence: result.ConfidenceScore,
			Citations:  result.Citations,
		})
	}
	h.record(r.Context(), "ask", historySession, targets, http.StatusOK, "", start)

	writeJSON(w, http.StatusOK, askResponse{
		Answer:          result.Answer,
		ConfidenceScore: result.ConfidenceScore,
		Citations:       result.Citations,
		SessionID:       historySession,
	})
}

// HandleSummarize asks the downstream for a summary of the selected
// documents. At least one document must be selected.
func (h *Handler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	sessionIDs, targets, errStatus := h.decodeSelection(w, r, "summarize", start)
	if errStatus {
		return
	}
	if len(targets) == 0 {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("no documents uploaded for the given sessions"))
		h.record(r.Context(), "summarize", firstOrEmpty(sessionIDs), nil, status, class, start)
		return
	}

	historySession := firstOrEmpty(sessionIDs)
	result, err := h.rag.Summarize(r.Context(), targets)
	if err != nil {
		status, class := h.writeError(w, r, err)
		h.record(r.Context(), "summarize", historySession, targets, status, class, start)
		return
	}

	h.record(r.Context(), "summarize", historySession, targets, http.StatusOK, "", start)
	writeJSON(w, http.StatusOK, map[string]string{"summary": result.Summary})
}

// HandleCompare asks the downstream to compare documents. A comparison
// needs at least two of them.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	sessionIDs, targets, errStatus := h.decodeSelection(w, r, "compare", start)
	if errStatus {
		return
	}
	if len(targets) < 2 {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("select at least 2 documents to compare"))
		h.record(r.Context(), "compare", firstOrEmpty(sessionIDs), targets, status, class, start)
		return
	}

	historySession := firstOrEmpty(sessionIDs)
	result, err := h.rag.Compare(r.Context(), targets)
	if err != nil {
		status, class := h.writeError(w, r, err)
		h.record(r.Context(), "compare", historySession, targets, status, class, start)
		return
	}

	h.record(r.Context(), "compare", historySession, targets, http.StatusOK, "", start)
	writeJSON(w, http.StatusOK, map[string]string{"comparison": result.Comparison})
}

// decodeSelection parses the shared session/doc selection body for
// summarize and compare. A true return means the error response has
// already been written.
func (h *Handler) decodeSelection(w http.ResponseWriter, r *http.Request, route string, start time.Time) ([]string, []string, bool) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("malformed request body"))
		h.record(r.Context(), route, "", nil, status, class, start)
		return nil, nil, true
	}

	sessionIDs, ok := resolveSessions(req.SessionID, req.SessionIDs)
	if !ok {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("malformed session id"))
		h.record(r.Context(), route, "", nil, status, class, start)
		return nil, nil, true
	}
	if len(sessionIDs) == 0 && len(req.DocIDs) == 0 {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("missing session_ids"))
		h.record(r.Context(), route, "", nil, status, class, start)
		return nil, nil, true
	}

	if sid := firstOrEmpty(sessionIDs); sid != "" {
		server.AddLogField(r.Context(), "session_id", sid)
	}
	return sessionIDs, h.resolveTargets(sessionIDs, req.DocIDs), false
}

func firstOrEmpty(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
