// Package ragclient is the gateway's HTTP client for the downstream RAG
// service. Every call carries a bounded timeout and failures collapse into
// a small taxonomy: ErrUnreachable, ErrTimeout, or DownstreamError. The
// client never retries; reporting cleanly is the gateway's whole job here.
package ragclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neel92654/PDF-QA-Bot/internal/domain"
)

const (
	defaultCallTimeout   = 3 * time.Minute
	defaultHealthTimeout = 3 * time.Second

	// maxErrorBodyBytes bounds how much of a downstream error body is kept
	// for diagnostics.
	maxErrorBodyBytes = 4 << 10
)

// ErrUnreachable means the downstream refused or never answered the
// connection; nothing executed there.
var ErrUnreachable = errors.New("rag service unreachable")

// ErrTimeout means the call exceeded its budget. Unlike ErrUnreachable the
// request may have partially executed downstream, so it is not safe to
// blindly retry.
var ErrTimeout = errors.New("rag service call timed out")

// DownstreamError is a non-success response from the RAG service. The body
// is kept for server-side diagnostics, never echoed verbatim to clients.
type DownstreamError struct {
	Status int
	Body   string
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("rag service returned status %d", e.Status)
}

// AskRequest is the downstream question payload.
type AskRequest struct {
	Question   string            `json:"question"`
	SessionIDs []string          `json:"session_ids"`
	History    []domain.ChatTurn `json:"history,omitempty"`
}

// AskResult is the downstream answer.
type AskResult struct {
	Answer          string            `json:"answer"`
	ConfidenceScore *float64          `json:"confidence_score,omitempty"`
	Citations       []domain.Citation `json:"citations,omitempty"`
}

// UploadResult acknowledges a processed document.
type UploadResult struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// SummarizeResult carries a document summary.
type SummarizeResult struct {
	Summary string `json:"summary"`
}

// CompareResult carries a cross-document comparison.
type CompareResult struct {
	Comparison string `json:"comparison"`
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithCallTimeout bounds upload/ask/summarize/compare calls.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

// WithHealthTimeout bounds health probes.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) { c.healthTimeout = d }
}

// Client talks to the RAG service.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	callTimeout   time.Duration
	healthTimeout time.Duration
}

// New creates a client for the RAG service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		httpClient:    http.DefaultClient,
		callTimeout:   defaultCallTimeout,
		healthTimeout: defaultHealthTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload streams a staged file to the downstream as a multipart body. The
// file is piped, not buffered, so concurrent large uploads do not balloon
// gateway memory.
func (c *Client) Upload(ctx context.Context, file io.Reader, filename, sessionID string) (*UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("session_id", sessionID); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	var result UploadResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ask forwards a question over the given downstream sessions.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	var result AskResult
	if err := c.postJSON(ctx, "/ask", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Summarize requests a summary of the documents in the given sessions.
func (c *Client) Summarize(ctx context.Context, sessionIDs []string) (*SummarizeResult, error) {
	payload := struct {
		SessionIDs []string `json:"session_ids"`
	}{SessionIDs: sessionIDs}

	var result SummarizeResult
	if err := c.postJSON(ctx, "/summarize", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Compare requests a comparison across the given sessions.
func (c *Client) Compare(ctx context.Context, sessionIDs []string) (*CompareResult, error) {
	payload := struct {
		SessionIDs []string `json:"session_ids"`
	}{SessionIDs: sessionIDs}

	var result CompareResult
	if err := c.postJSON(ctx, "/compare", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckHealth probes the downstream health endpoint with a short timeout.
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))

	if resp.StatusCode != http.StatusOK {
		return &DownstreamError{Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, result)
}

func decodeResponse(resp *http.Response, result any) error {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &DownstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &DownstreamError{Status: resp.StatusCode, Body: "malformed response body: " + err.Error()}
	}
	return nil
}

// classifyTransportError maps a transport failure onto the taxonomy. A
// deadline hit means the request may be mid-flight downstream; anything
// else before a response means the service never took the call.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
