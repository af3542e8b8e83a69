package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/neel92654/PDF-QA-Bot/internal/domain"
	"github.com/neel92654/PDF-QA-Bot/internal/ragclient"
	"github.com/neel92654/PDF-QA-Bot/internal/server"
)

// errorBody is the uniform error response shape.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError translates a failure into the uniform JSON error shape and
// returns the status plus a taxonomy class for the audit record. Client
// errors surface their reason verbatim; downstream failures are logged
// with full detail but reach the client as a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) (int, string) {
	server.AddError(r.Context(), err)

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatusCode()
		body := errorBody{Error: apiErr.Message, Code: string(apiErr.Code)}
		if status < http.StatusInternalServerError {
			body.Details = apiErr.Details
		} else {
			// Operator detail stays in the logs for 5xx.
			body.Error = "internal server error"
			body.Code = ""
			h.logger.Error("request failed",
				slog.String("request_id", server.GetRequestID(r.Context())),
				slog.String("error", apiErr.Error()),
				slog.String("details", apiErr.Details),
			)
		}
		writeJSON(w, status, body)
		return status, string(apiErr.Type)
	}

	requestID := server.GetRequestID(r.Context())

	if errors.Is(err, ragclient.ErrUnreachable) {
		h.logger.Error("rag service unreachable",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "service unavailable"})
		return http.StatusServiceUnavailable, "unreachable"
	}

	if errors.Is(err, ragclient.ErrTimeout) {
		h.logger.Error("rag service call timed out",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "request to document service failed"})
		return http.StatusInternalServerError, "timeout"
	}

	var dsErr *ragclient.DownstreamError
	if errors.As(err, &dsErr) {
		h.logger.Error("rag service returned an error",
			slog.String("request_id", requestID),
			slog.Int("downstream_status", dsErr.Status),
			slog.String("downstream_body", dsErr.Body),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "request to document service failed"})
		return http.StatusInternalServerError, "downstream"
	}

	h.logger.Error("request failed",
		slog.String("request_id", requestID),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	return http.StatusInternalServerError, "server"
}
