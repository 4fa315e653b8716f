package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSettings struct {
	strings map[string]string
	ints    map[string]int
}

func (s *staticSettings) GetString(ctx context.Context, key, def string) (string, error) {
	if v, ok := s.strings[key]; ok {
		return v, nil
	}
	return def, nil
}

func (s *staticSettings) GetInt(ctx context.Context, key string, def int) (int, error) {
	if v, ok := s.ints[key]; ok {
		return v, nil
	}
	return def, nil
}

func (s *staticSettings) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	return def, nil
}

func (s *staticSettings) GetDuration(ctx context.Context, key string, def time.Duration) (time.Duration, error) {
	return def, nil
}

func (s *staticSettings) GetStrings(ctx context.Context, key string, def []string) ([]string, error) {
	return def, nil
}

func TestCooldown_FirstEmissionAllowed(t *testing.T) {
	c := NewCooldown(&staticSettings{})
	ctx := context.Background()

	assert.True(t, c.Allow(ctx, "auth.login.failure", "alice", "1.2.3.4"))
	assert.False(t, c.Allow(ctx, "auth.login.failure", "alice", "1.2.3.4"))

	// different key parts and different event types are independent
	assert.True(t, c.Allow(ctx, "auth.login.failure", "bob", "1.2.3.4"))
	assert.True(t, c.Allow(ctx, "auth.login.success", "alice", "1.2.3.4"))
}

func TestCooldown_NilPartsIgnoredInKey(t *testing.T) {
	c := NewCooldown(&staticSettings{})
	ctx := context.Background()

	// empty parts collapse, so these address the same entry
	assert.True(t, c.Allow(ctx, "auth.login.failure", "", "1.2.3.4"))
	assert.False(t, c.Allow(ctx, "auth.login.failure", "1.2.3.4", ""))
}

func TestCooldown_ConcurrentAttemptsWinOnce(t *testing.T) {
	c := NewCooldown(&staticSettings{})
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.Allow(ctx, "ratelimit.exceeded", "9.9.9.9", "/api/x")
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for r := range results {
		if r {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestCooldown_WindowMeasuredFromLastAllow(t *testing.T) {
	c := NewCooldown(&staticSettings{})
	ctx := context.Background()
	key := cooldownKey("auth.login.failure", []string{"alice"})

	require.True(t, c.Allow(ctx, "auth.login.failure", "alice"))
	first, ok := c.entries.Load(key)
	require.True(t, ok)

	// suppressed attempts must not refresh the timestamp
	require.False(t, c.Allow(ctx, "auth.login.failure", "alice"))
	after, ok := c.entries.Load(key)
	require.True(t, ok)
	assert.Equal(t, first, after)

	// once the window has elapsed a new emission is allowed again
	c.entries.Store(key, time.Now().Add(-10*time.Minute))
	assert.True(t, c.Allow(ctx, "auth.login.failure", "alice"))
}

func TestCooldown_Sweep(t *testing.T) {
	c := NewCooldown(&staticSettings{})
	ctx := context.Background()

	require.True(t, c.Allow(ctx, "auth.login.failure", "fresh"))
	c.entries.Store(cooldownKey("auth.login.failure", []string{"stale"}), time.Now().Add(-time.Hour))

	removed := c.Sweep(ctx)
	assert.Equal(t, 1, removed)

	_, staleLeft := c.entries.Load(cooldownKey("auth.login.failure", []string{"stale"}))
	assert.False(t, staleLeft)
	_, freshLeft := c.entries.Load(cooldownKey("auth.login.failure", []string{"fresh"}))
	assert.True(t, freshLeft)
}

func TestCooldown_ConfiguredWindow(t *testing.T) {
	// a 1-minute window expires sooner than the default 5 minutes
	c := NewCooldown(&staticSettings{ints: map[string]int{"audit.cooldown.minutes": 1}})
	ctx := context.Background()
	key := cooldownKey("auth.login.failure", []string{"alice"})

	require.True(t, c.Allow(ctx, "auth.login.failure", "alice"))
	c.entries.Store(key, time.Now().Add(-90*time.Second))
	assert.True(t, c.Allow(ctx, "auth.login.failure", "alice"))
}
