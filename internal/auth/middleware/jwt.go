package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	adomain "github.com/errolitolopez/user-access-manager/internal/audit/domain"
	ausvc "github.com/errolitolopez/user-access-manager/internal/audit/service"
	"github.com/errolitolopez/user-access-manager/internal/metrics"
	"github.com/errolitolopez/user-access-manager/internal/security/identity"
	"github.com/errolitolopez/user-access-manager/internal/security/token"
)

// NewJWT returns an Echo middleware that validates bearer tokens and
// stores the authenticated subject in the request context. Rejections
// emit a cooldown-gated audit event so a client replaying a bad token
// does not flood the audit stream.
func NewJWT(tokens *token.Service, cooldown *ausvc.Cooldown, pub adomain.Publisher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				return reject(c, cooldown, pub, "missing", "missing bearer token")
			}

			subject, err := tokens.Verify(c.Request().Context(), strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return reject(c, cooldown, pub, rejectionKind(err), "invalid or expired token")
			}

			identity.SetActor(c, subject)
			return next(c)
		}
	}
}

func rejectionKind(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrSignatureMismatch):
		return "signature"
	default:
		return "malformed"
	}
}

func reject(c echo.Context, cooldown *ausvc.Cooldown, pub adomain.Publisher, kind, msg string) error {
	addr := identity.ClientAddress(c.Request())
	metrics.IncTokenRejected(kind)
	if cooldown.Allow(c.Request().Context(), adomain.TypeTokenRejected, addr, kind) {
		publishRejection(c.Request().Context(), pub, adomain.Event{
			SourceAddr: addr,
			Type:       adomain.TypeTokenRejected,
			Meta: map[string]string{
				"kind":        kind,
				"request_uri": c.Request().RequestURI,
			},
			Time: time.Now(),
		})
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}

func publishRejection(ctx context.Context, pub adomain.Publisher, e adomain.Event) {
	// auditing is advisory, a sink failure never blocks the response
	_ = pub.Publish(ctx, e)
}
