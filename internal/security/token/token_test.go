package token

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/errolitolopez/user-access-manager/internal/config"
)

type fakeSettings struct {
	secret string
	ttl    time.Duration
}

func (f *fakeSettings) GetString(ctx context.Context, key, def string) (string, error) {
	if f.secret != "" {
		return f.secret, nil
	}
	return def, nil
}

func (f *fakeSettings) GetInt(ctx context.Context, key string, def int) (int, error) {
	return def, nil
}

func (f *fakeSettings) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	return def, nil
}

func (f *fakeSettings) GetDuration(ctx context.Context, key string, def time.Duration) (time.Duration, error) {
	if f.ttl != 0 {
		return f.ttl, nil
	}
	return def, nil
}

func (f *fakeSettings) GetStrings(ctx context.Context, key string, def []string) ([]string, error) {
	return def, nil
}

func newService(fs *fakeSettings) *Service {
	cfg := config.Config{JWTSecret: "test-secret", JWTExpiration: time.Hour}
	return New(fs, cfg)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newService(&fakeSettings{})

	tok, err := s.Issue(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	subject, err := s.Verify(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestVerifyExpired(t *testing.T) {
	ctx := context.Background()
	s := newService(&fakeSettings{ttl: -time.Minute})

	tok, err := s.Issue(ctx, "alice")
	require.NoError(t, err)

	_, err = s.Verify(ctx, tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifySignatureMismatch(t *testing.T) {
	ctx := context.Background()
	fs := &fakeSettings{}
	s := newService(fs)

	tok, err := s.Issue(ctx, "alice")
	require.NoError(t, err)

	// rotate the signing secret; previously issued tokens become invalid
	fs.secret = "rotated-secret"
	_, err = s.Verify(ctx, tok)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyMalformed(t *testing.T) {
	ctx := context.Background()
	s := newService(&fakeSettings{})

	for _, bad := range []string{"", "garbage", "a.b.c"} {
		_, err := s.Verify(ctx, bad)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", bad)
	}
}

func TestSubjectFromRequest(t *testing.T) {
	ctx := context.Background()
	s := newService(&fakeSettings{})

	t.Run("no header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/x", nil)
		_, ok := s.SubjectFromRequest(ctx, r)
		assert.False(t, ok)
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/x", nil)
		r.Header.Set("Authorization", "Bearer nope")
		_, ok := s.SubjectFromRequest(ctx, r)
		assert.False(t, ok)
	})

	t.Run("valid token", func(t *testing.T) {
		tok, err := s.Issue(ctx, "alice")
		require.NoError(t, err)
		r := httptest.NewRequest("GET", "/api/x", nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		subject, ok := s.SubjectFromRequest(ctx, r)
		assert.True(t, ok)
		assert.Equal(t, "alice", subject)
	})
}
