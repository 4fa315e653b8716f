package token

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/errolitolopez/user-access-manager/internal/config"
	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
)

// Verification failures. Callers distinguish "reject silently" from
// "reject and audit" on these; nothing else ever escapes Verify.
var (
	ErrMalformed         = errors.New("token malformed")
	ErrExpired           = errors.New("token expired")
	ErrSignatureMismatch = errors.New("token signature mismatch")
)

// Service issues and verifies signed, time-bounded identity tokens.
// Tokens are stateless: validity is purely signature + expiry against
// the currently configured secret. The secret and TTL come from the
// settings service, so a rotation takes effect without a restart (at
// the next settings refresh); tokens signed under a previous secret
// then fail verification with no grace window.
type Service struct {
	settings sdomain.Service
	cfg      config.Config
}

func New(settings sdomain.Service, cfg config.Config) *Service {
	return &Service{settings: settings, cfg: cfg}
}

// Issue returns a compact signed token for the subject.
func (s *Service) Issue(ctx context.Context, subject string) (string, error) {
	ttl, _ := s.settings.GetDuration(ctx, sdomain.KeyJWTTTL, s.cfg.JWTExpiration)
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret(ctx))
}

// Verify decodes and validates an encoded token, returning its subject.
// Failures are always one of ErrMalformed, ErrExpired, or
// ErrSignatureMismatch; garbage input never panics.
func (s *Service) Verify(ctx context.Context, encoded string) (string, error) {
	tok, err := jwt.ParseWithClaims(encoded, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return s.secret(ctx), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrSignatureMismatch
		default:
			return "", ErrMalformed
		}
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}

// SubjectFromRequest extracts and verifies the bearer token on a
// request. Best-effort: any missing or invalid token reads as anonymous.
func (s *Service) SubjectFromRequest(ctx context.Context, r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	subject, err := s.Verify(ctx, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return "", false
	}
	return subject, true
}

func (s *Service) secret(ctx context.Context) []byte {
	v, _ := s.settings.GetString(ctx, sdomain.KeyJWTSecret, s.cfg.JWTSecret)
	return []byte(v)
}
