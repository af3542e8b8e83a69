package gateway

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/neel92654/PDF-QA-Bot/internal/domain"
	"github.com/neel92654/PDF-QA-Bot/internal/server"
	"github.com/neel92654/PDF-QA-Bot/internal/session"
	"github.com/neel92654/PDF-QA-Bot/internal/upload"
)

// multipartEnvelopeSlack is the allowance for multipart boundaries, part
// headers, and form fields when prechecking Content-Length against the
// file-size limit.
const multipartEnvelopeSlack = 4 << 10

// uploadResponse acknowledges an admitted and processed upload. SessionID
// is the gateway session the document now belongs to; DocID is the
// downstream's identifier for the processed document.
type uploadResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	DocID     string `json:"doc_id,omitempty"`
}

// HandleUpload validates the multipart stream, stages the file, and
// forwards it downstream. The staged file is released on every path:
// validation failure, downstream failure, timeout, or success.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Cheap fast-path rejection before reading anything. Content-Length
	// covers the whole multipart envelope, not just the file, so only
	// bodies that cannot possibly hold an admissible file are rejected
	// here; the exact file-size bound is enforced by the validator's
	// bounded copy.
	if max := h.validator.MaxBytes(); max > 0 && r.ContentLength > max+multipartEnvelopeSlack {
		status, class := h.writeError(w, r, domain.ErrTooLarge("file exceeds the maximum allowed size"))
		h.record(r.Context(), "upload", "", nil, status, class, start)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("expected a multipart form upload"))
		h.record(r.Context(), "upload", "", nil, status, class, start)
		return
	}

	// Read parts in arrival order; the file is staged as it streams so a
	// trailing sessionId field still gets picked up.
	var staged *upload.StagedFile
	sessionID := ""
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if staged != nil {
				staged.Release()
			}
			status, class := h.writeError(w, r, domain.ErrInvalidRequest("malformed multipart form"))
			h.record(r.Context(), "upload", sessionID, nil, status, class, start)
			return
		}

		switch part.FormName() {
		case "file":
			if staged != nil {
				part.Close()
				continue
			}
			staged, err = h.validator.Validate(part, part.FileName(), part.Header.Get("Content-Type"))
			if err != nil {
				part.Close()
				status, class := h.writeError(w, r, err)
				h.record(r.Context(), "upload", sessionID, nil, status, class, start)
				return
			}
		case "sessionId", "session_id":
			value, _ := io.ReadAll(io.LimitReader(part, 256))
			sessionID = strings.TrimSpace(string(value))
		}
		part.Close()
	}

	if staged == nil {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("no file provided"))
		h.record(r.Context(), "upload", sessionID, nil, status, class, start)
		return
	}
	defer staged.Release()

	if sessionID == "" {
		sessionID = session.NewID()
	} else if !session.ValidID(sessionID) {
		status, class := h.writeError(w, r, domain.ErrInvalidRequest("malformed session id"))
		h.record(r.Context(), "upload", "", nil, status, class, start)
		return
	}
	server.AddLogField(r.Context(), "session_id", sessionID)

	file, err := staged.Open()
	if err != nil {
		status, class := h.writeError(w, r, domain.ErrServer("failed to read staged upload").WithDetails(err.Error()))
		h.record(r.Context(), "upload", sessionID, nil, status, class, start)
		return
	}
	defer file.Close()

	result, err := h.rag.Upload(r.Context(), file, staged.Name(), sessionID)
	if err != nil {
		status, class := h.writeError(w, r, err)
		h.record(r.Context(), "upload", sessionID, nil, status, class, start)
		return
	}

	h.sessions.AddDocuments(sessionID, result.SessionID)
	h.record(r.Context(), "upload", sessionID, []string{result.SessionID}, http.StatusOK, "", start)

	message := result.Message
	if message == "" {
		message = "file uploaded and processed"
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:   message,
		SessionID: sessionID,
		DocID:     result.SessionID,
	})
}
