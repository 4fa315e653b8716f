package domain

import (
	"context"
	"time"
)

// Event types emitted by the security enforcement pipeline.
const (
	TypeLoginSuccess       = "auth.login.success"
	TypeLoginFailure       = "auth.login.failure"
	TypeAccountLocked      = "account.locked"
	TypeAccountUnlocked    = "account.unlocked"
	TypeAccountExpired     = "account.expired"
	TypeCredentialsExpired = "credentials.expired"
	TypeRateLimitExceeded  = "ratelimit.exceeded"
	TypeTokenRejected      = "token.rejected"
)

// Event is a write-once security/audit record handed to the sink.
// Actor is the authenticated subject when known; SourceAddr is the
// client address the request arrived from. Meta carries event-specific
// attributes (reason, request_uri, userId, ...).
type Event struct {
	Actor      string
	SourceAddr string
	Type       string
	Meta       map[string]string
	Time       time.Time
}

// Publisher delivers events to an external sink (log, queue, table).
// Delivery is fire-and-forget from the caller's perspective: a failing
// sink must never fail the request that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	// PublishBatch emits one batched record for a scheduler run.
	PublishBatch(ctx context.Context, events []Event) error
}
