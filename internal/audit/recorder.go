// Package audit records the outcome of each proxied call for operator
// diagnostics. Recording is best-effort: a failed write is logged and the
// response proceeds untouched.
package audit

import (
	"context"
	"time"
)

// ProxyCall is one forwarded request's surviving artifact.
type ProxyCall struct {
	RequestID string
	Route     string
	SessionID string
	DocIDs    []string
	Status    int
	// ErrorClass is empty on success, otherwise one of the failure
	// taxonomy names (unreachable, timeout, downstream, validation, ...).
	ErrorClass string
	Duration   time.Duration
	CreatedAt  time.Time
}

// Recorder persists proxy-call outcomes.
type Recorder interface {
	Record(ctx context.Context, call ProxyCall) error
	Close() error
}

// Nop discards every record. Used when auditing is disabled.
type Nop struct{}

func (Nop) Record(ctx context.Context, call ProxyCall) error { return nil }

func (Nop) Close() error { return nil }
