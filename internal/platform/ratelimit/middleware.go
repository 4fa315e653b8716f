package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	adomain "github.com/errolitolopez/user-access-manager/internal/audit/domain"
	ausvc "github.com/errolitolopez/user-access-manager/internal/audit/service"
	"github.com/errolitolopez/user-access-manager/internal/metrics"
	"github.com/errolitolopez/user-access-manager/internal/security/identity"
	"github.com/errolitolopez/user-access-manager/internal/security/token"
	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
)

// Filter wires admission control into the request path. It consults the
// dynamic enabled flag and URL include/exclude lists before limiting,
// derives the identifier from the caller's (optional) token subject,
// client address and path, and produces structured 429 rejections.
type Filter struct {
	settings sdomain.Service
	registry *Registry
	tokens   *token.Service
	cooldown *ausvc.Cooldown
	pub      adomain.Publisher
	// store, when set, replaces the in-process registry with a shared
	// counter store for multi-instance deployments.
	store Store
}

func NewFilter(settings sdomain.Service, registry *Registry, tokens *token.Service, cooldown *ausvc.Cooldown, pub adomain.Publisher) *Filter {
	return &Filter{settings: settings, registry: registry, tokens: tokens, cooldown: cooldown, pub: pub}
}

// WithStore switches the filter to a shared store (e.g. Redis).
func (f *Filter) WithStore(s Store) *Filter {
	f.store = s
	return f
}

// Middleware returns the echo middleware enforcing the filter.
func (f *Filter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			enabled, _ := f.settings.GetBool(ctx, sdomain.KeyRateLimitEnabled, false)
			if !enabled {
				return next(c)
			}

			path := c.Request().URL.Path
			included, _ := f.settings.GetStrings(ctx, sdomain.KeyRateLimitIncludedURLs, nil)
			excluded, _ := f.settings.GetStrings(ctx, sdomain.KeyRateLimitExcludedURLs, nil)
			if !matchesPrefix(path, included) || matchesSuffix(path, excluded) {
				return next(c)
			}

			subject, authed := f.tokens.SubjectFromRequest(ctx, c.Request())
			addr := identity.ClientAddress(c.Request())
			identifier := addr + ":" + path
			if authed {
				identifier = subject + ":" + identifier
			}

			if f.allow(c, identifier) {
				return next(c)
			}

			source := "ip"
			if authed {
				source = "user"
			}
			metrics.IncRateLimitExceeded(source)
			if f.cooldown.Allow(ctx, adomain.TypeRateLimitExceeded, identifier, path) {
				_ = f.pub.Publish(ctx, adomain.Event{
					Actor:      subject,
					SourceAddr: addr,
					Type:       adomain.TypeRateLimitExceeded,
					Meta:       map[string]string{"request_uri": path, "reason": "API rate limit exceeded"},
					Time:       time.Now(),
				})
			}
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error":   "Too Many Requests",
				"message": "You have exceeded the API request limit. Please try again later.",
			})
		}
	}
}

// allow decides admission via the shared store when configured, else
// the in-process registry. Store errors fail open: the limiter is
// defense-in-depth, not the primary control.
func (f *Filter) allow(c echo.Context, identifier string) bool {
	ctx := c.Request().Context()
	if f.store != nil {
		capacity, refill := f.registry.bucketConfig(ctx)
		allowed, retryAfter, err := f.store.Allow(ctx, identifier, capacity, refill)
		if err != nil {
			return true
		}
		if !allowed && retryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
		return allowed
	}
	return f.registry.TryConsume(ctx, identifier)
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func matchesSuffix(path string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}
