package domain

import (
	"context"
	"errors"

	udomain "github.com/errolitolopez/user-access-manager/internal/users/domain"
)

// Authentication rejections. Messages are user-safe by construction:
// ErrInvalidCredentials deliberately does not reveal whether the
// identity or the secret was wrong; the precise reason lives only in
// the (cooldown-gated) audit trail.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountExpired     = errors.New("your account has expired, please contact support to renew it")
	ErrAccountDisabled    = errors.New("your account has been disabled, please contact the administrator")
	ErrAccountLocked      = errors.New("your account is locked due to too many failed login attempts, please try again later")
	ErrUnavailable        = errors.New("authentication is temporarily unavailable")
)

// AuthenticateInput carries the claimed identity, the secret, and the
// client context used for auditing.
type AuthenticateInput struct {
	Username   string
	Password   string
	ClientAddr string
}

// AuthResult is the terminal success outcome: a signed token plus a
// user-safe account summary.
type AuthResult struct {
	Token string          `json:"token"`
	User  udomain.Summary `json:"user"`
}

// Service is the authentication orchestrator contract.
type Service interface {
	Authenticate(ctx context.Context, in AuthenticateInput) (AuthResult, error)
}
