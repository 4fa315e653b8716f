package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	adomain "github.com/errolitolopez/user-access-manager/internal/audit/domain"
	ausvc "github.com/errolitolopez/user-access-manager/internal/audit/service"
	"github.com/errolitolopez/user-access-manager/internal/auth/domain"
	"github.com/errolitolopez/user-access-manager/internal/metrics"
	"github.com/errolitolopez/user-access-manager/internal/security/token"
	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
	udomain "github.com/errolitolopez/user-access-manager/internal/users/domain"
)

const (
	defaultMaxFailedAttempts   = 10
	defaultLockoutResetMinutes = 30
)

// Service validates credentials against the durable account store,
// gates on account status, tracks failed attempts, locks accounts past
// the threshold, and issues tokens on success. Account state mutations
// race with the reconciliation jobs by design: both sides do
// read-modify-write against storage and the last write wins, with the
// next job run correcting any drift.
type Service struct {
	users    udomain.Repository
	settings sdomain.Service
	tokens   *token.Service
	cooldown *ausvc.Cooldown
	pub      adomain.Publisher
	log      zerolog.Logger
}

func New(users udomain.Repository, settings sdomain.Service, tokens *token.Service, cooldown *ausvc.Cooldown, pub adomain.Publisher, log zerolog.Logger) *Service {
	return &Service{users: users, settings: settings, tokens: tokens, cooldown: cooldown, pub: pub, log: log}
}

// Authenticate runs the login decision procedure. Every call terminates
// in either a token+summary or a typed rejection carrying a user-safe
// message.
func (s *Service) Authenticate(ctx context.Context, in domain.AuthenticateInput) (domain.AuthResult, error) {
	u, err := s.users.FindByUsername(ctx, in.Username)
	if errors.Is(err, udomain.ErrNotFound) {
		s.publishGated(ctx, in.Username, in.ClientAddr, adomain.TypeLoginFailure, map[string]string{
			"reason":   "unknown identity",
			"username": in.Username,
		})
		metrics.IncAuthOutcome("failure", "unknown_identity")
		return domain.AuthResult{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		s.log.Error().Err(err).Msg("account lookup failed")
		metrics.IncAuthOutcome("failure", "storage")
		return domain.AuthResult{}, domain.ErrUnavailable
	}

	// Status gates, in order. None of these touch the attempt counter.
	switch {
	case u.AccountExpired:
		metrics.IncAuthOutcome("rejected", "expired")
		return domain.AuthResult{}, domain.ErrAccountExpired
	case !u.Enabled:
		metrics.IncAuthOutcome("rejected", "disabled")
		return domain.AuthResult{}, domain.ErrAccountDisabled
	case u.AccountLocked:
		metrics.IncAuthOutcome("rejected", "locked")
		return domain.AuthResult{}, domain.ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		s.handleFailedAttempt(ctx, u, in.ClientAddr)
		s.publishGated(ctx, u.Username, in.ClientAddr, adomain.TypeLoginFailure, map[string]string{
			"reason": "wrong secret",
			"userId": u.ID.String(),
		})
		metrics.IncAuthOutcome("failure", "wrong_secret")
		return domain.AuthResult{}, domain.ErrInvalidCredentials
	}

	s.publishGated(ctx, u.Username, in.ClientAddr, adomain.TypeLoginSuccess, map[string]string{
		"userId":         u.ID.String(),
		"failedAttempts": strconv.Itoa(u.FailedLoginAttempts),
	})

	u.FailedLoginAttempts = 0
	u.LastFailedLoginTime = nil
	if err := s.users.Save(ctx, u); err != nil {
		s.log.Error().Err(err).Str("username", u.Username).Msg("failed to reset login attempts")
	}

	tok, err := s.tokens.Issue(ctx, u.Username)
	if err != nil {
		s.log.Error().Err(err).Msg("token issuance failed")
		metrics.IncAuthOutcome("failure", "storage")
		return domain.AuthResult{}, domain.ErrUnavailable
	}
	metrics.IncAuthOutcome("success", "ok")
	return domain.AuthResult{Token: tok, User: u.Summary()}, nil
}

// handleFailedAttempt increments the counter (resetting first when the
// previous failure predates the lockout-reset window, so stale failures
// do not accumulate toward a lock) and locks the account at the
// configured maximum.
func (s *Service) handleFailedAttempt(ctx context.Context, u udomain.User, clientAddr string) {
	resetMinutes, _ := s.settings.GetInt(ctx, sdomain.KeyLockoutResetMinutes, defaultLockoutResetMinutes)
	now := time.Now()
	if u.LastFailedLoginTime != nil && now.Sub(*u.LastFailedLoginTime) >= time.Duration(resetMinutes)*time.Minute {
		u.FailedLoginAttempts = 0
	}

	u.FailedLoginAttempts++
	u.LastFailedLoginTime = &now

	maxAttempts, _ := s.settings.GetInt(ctx, sdomain.KeyMaxFailedAttempts, defaultMaxFailedAttempts)
	if u.FailedLoginAttempts >= maxAttempts {
		u.AccountLocked = true
		metrics.IncAccountLocked()
		s.publishGated(ctx, u.Username, clientAddr, adomain.TypeAccountLocked, map[string]string{
			"userId":         u.ID.String(),
			"failedAttempts": strconv.Itoa(u.FailedLoginAttempts),
		})
	}

	if err := s.users.Save(ctx, u); err != nil {
		s.log.Error().Err(err).Str("username", u.Username).Msg("failed to persist login attempt")
	}
}

// publishGated emits an audit event unless the cooldown suppresses it.
// Sink failures are swallowed: auditing never fails a login.
func (s *Service) publishGated(ctx context.Context, actor, addr, eventType string, meta map[string]string) {
	if !s.cooldown.Allow(ctx, eventType, actor, addr) {
		return
	}
	if err := s.pub.Publish(ctx, adomain.Event{
		Actor:      actor,
		SourceAddr: addr,
		Type:       eventType,
		Meta:       meta,
		Time:       time.Now(),
	}); err != nil {
		s.log.Warn().Err(err).Str("type", eventType).Msg("audit publish failed")
	}
}
