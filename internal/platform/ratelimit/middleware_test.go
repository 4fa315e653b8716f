package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adomain "github.com/errolitolopez/user-access-manager/internal/audit/domain"
	ausvc "github.com/errolitolopez/user-access-manager/internal/audit/service"
	"github.com/errolitolopez/user-access-manager/internal/config"
	"github.com/errolitolopez/user-access-manager/internal/logger"
	"github.com/errolitolopez/user-access-manager/internal/security/token"
)

type capturePublisher struct{ events []adomain.Event }

func (p *capturePublisher) Publish(ctx context.Context, e adomain.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) PublishBatch(ctx context.Context, events []adomain.Event) error {
	p.events = append(p.events, events...)
	return nil
}

func newTestServer(fs *fakeSettings, pub adomain.Publisher) *echo.Echo {
	cfg := config.Config{JWTSecret: "test-secret", JWTExpiration: time.Hour}
	f := NewFilter(fs, NewRegistry(fs, logger.Nop()), token.New(fs, cfg), ausvc.NewCooldown(fs), pub)

	e := echo.New()
	e.Use(f.Middleware())
	e.GET("/api/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/api/style.css", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/public/y", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func do(e *echo.Echo, path, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Forwarded-For", addr)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func limitedSettings(capacity int) *fakeSettings {
	return &fakeSettings{
		bools:     map[string]bool{"rate.limit.enabled": true},
		ints:      map[string]int{"rate.limit.capacity": capacity},
		durations: map[string]time.Duration{"rate.limit.refill.duration": time.Minute},
		lists: map[string][]string{
			"rate.limit.included-urls": {"/api"},
			"rate.limit.excluded-urls": {".css"},
		},
	}
}

func TestFilter_RejectsOverLimit(t *testing.T) {
	pub := &capturePublisher{}
	e := newTestServer(limitedSettings(1), pub)

	assert.Equal(t, http.StatusOK, do(e, "/api/x", "1.2.3.4").Code)

	rec := do(e, "/api/x", "1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too Many Requests")

	// rejection was audited once with the request path
	require.Len(t, pub.events, 1)
	assert.Equal(t, adomain.TypeRateLimitExceeded, pub.events[0].Type)
	assert.Equal(t, "/api/x", pub.events[0].Meta["request_uri"])
	assert.Equal(t, "1.2.3.4", pub.events[0].SourceAddr)

	// repeated rejections within the cooldown window stay suppressed
	do(e, "/api/x", "1.2.3.4")
	assert.Len(t, pub.events, 1)
}

func TestFilter_SeparateIdentifiers(t *testing.T) {
	e := newTestServer(limitedSettings(1), &capturePublisher{})

	assert.Equal(t, http.StatusOK, do(e, "/api/x", "1.2.3.4").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, "/api/x", "1.2.3.4").Code)

	// a different client address is not affected
	assert.Equal(t, http.StatusOK, do(e, "/api/x", "5.6.7.8").Code)
}

func TestFilter_DisabledFlagBypasses(t *testing.T) {
	fs := limitedSettings(1)
	fs.bools["rate.limit.enabled"] = false
	e := newTestServer(fs, &capturePublisher{})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(e, "/api/x", "1.2.3.4").Code)
	}
}

func TestFilter_URLSelection(t *testing.T) {
	e := newTestServer(limitedSettings(1), &capturePublisher{})

	t.Run("non-included prefix bypasses", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, do(e, "/public/y", "1.2.3.4").Code)
		}
	})

	t.Run("excluded suffix bypasses", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, do(e, "/api/style.css", "1.2.3.4").Code)
		}
	})
}

func TestFilter_AuthenticatedSubjectInIdentifier(t *testing.T) {
	fs := limitedSettings(1)
	pub := &capturePublisher{}

	cfg := config.Config{JWTSecret: "test-secret", JWTExpiration: time.Hour}
	tokens := token.New(fs, cfg)
	f := NewFilter(fs, NewRegistry(fs, logger.Nop()), tokens, ausvc.NewCooldown(fs), pub)

	e := echo.New()
	e.Use(f.Middleware())
	e.GET("/api/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	tok, err := tokens.Issue(context.Background(), "alice")
	require.NoError(t, err)

	send := func(bearer string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		req.Header.Set("X-Forwarded-For", "1.2.3.4")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	// authenticated and anonymous callers from one address use
	// different buckets
	assert.Equal(t, http.StatusOK, send(tok))
	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusTooManyRequests, send(tok))
	assert.Equal(t, http.StatusTooManyRequests, send(""))

	// the audited rejection names the actor
	require.NotEmpty(t, pub.events)
	assert.Equal(t, "alice", pub.events[0].Actor)
}
