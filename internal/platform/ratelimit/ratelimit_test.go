package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/errolitolopez/user-access-manager/internal/logger"
)

type fakeSettings struct {
	strings   map[string]string
	ints      map[string]int
	bools     map[string]bool
	durations map[string]time.Duration
	lists     map[string][]string
}

func (f *fakeSettings) GetString(ctx context.Context, key, def string) (string, error) {
	if v, ok := f.strings[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeSettings) GetInt(ctx context.Context, key string, def int) (int, error) {
	if v, ok := f.ints[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeSettings) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	if v, ok := f.bools[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeSettings) GetDuration(ctx context.Context, key string, def time.Duration) (time.Duration, error) {
	if v, ok := f.durations[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeSettings) GetStrings(ctx context.Context, key string, def []string) ([]string, error) {
	if v, ok := f.lists[key]; ok {
		return v, nil
	}
	return def, nil
}

func TestRegistry_CapacityExhaustion(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(&fakeSettings{
		ints:      map[string]int{"rate.limit.capacity": 3},
		durations: map[string]time.Duration{"rate.limit.refill.duration": time.Minute},
	}, logger.Nop())

	for i := 0; i < 3; i++ {
		assert.True(t, r.TryConsume(ctx, "1.2.3.4:/api/x"), "consume %d", i+1)
	}
	assert.False(t, r.TryConsume(ctx, "1.2.3.4:/api/x"), "bucket exhausted")

	// an unrelated identifier has its own bucket
	assert.True(t, r.TryConsume(ctx, "5.6.7.8:/api/x"))
}

func TestRegistry_RefillRestoresTokens(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(&fakeSettings{
		ints:      map[string]int{"rate.limit.capacity": 2},
		durations: map[string]time.Duration{"rate.limit.refill.duration": 100 * time.Millisecond},
	}, logger.Nop())

	assert.True(t, r.TryConsume(ctx, "a"))
	assert.True(t, r.TryConsume(ctx, "a"))
	assert.False(t, r.TryConsume(ctx, "a"))

	time.Sleep(130 * time.Millisecond)

	assert.True(t, r.TryConsume(ctx, "a"))
	assert.True(t, r.TryConsume(ctx, "a"))
	assert.False(t, r.TryConsume(ctx, "a"))
}

func TestRegistry_ConfigChangeAppliesToNewBucketsOnly(t *testing.T) {
	ctx := context.Background()
	fs := &fakeSettings{
		ints:      map[string]int{"rate.limit.capacity": 1},
		durations: map[string]time.Duration{"rate.limit.refill.duration": time.Minute},
	}
	r := NewRegistry(fs, logger.Nop())

	assert.True(t, r.TryConsume(ctx, "old"))
	assert.False(t, r.TryConsume(ctx, "old"))

	fs.ints["rate.limit.capacity"] = 3

	// pre-existing bucket keeps its original capacity
	assert.False(t, r.TryConsume(ctx, "old"))

	// a bucket created after the change gets the new capacity
	for i := 0; i < 3; i++ {
		assert.True(t, r.TryConsume(ctx, "new"), "consume %d", i+1)
	}
	assert.False(t, r.TryConsume(ctx, "new"))
}

func TestRegistry_LRUEviction(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(&fakeSettings{}, logger.Nop())
	r.maxEntries = 2

	r.TryConsume(ctx, "a")
	r.TryConsume(ctx, "b")
	r.TryConsume(ctx, "a") // refresh a; b becomes least recently used
	r.TryConsume(ctx, "c") // evicts b

	assert.Equal(t, 2, r.Len())
	r.mu.Lock()
	_, aKept := r.entries["a"]
	_, bKept := r.entries["b"]
	_, cKept := r.entries["c"]
	r.mu.Unlock()
	assert.True(t, aKept)
	assert.False(t, bKept)
	assert.True(t, cKept)
}

func TestRegistry_CleanupDropsIdleBuckets(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(&fakeSettings{}, logger.Nop())

	r.TryConsume(ctx, "idle")
	r.mu.Lock()
	r.entries["idle"].Value.(*entry).lastAccess = time.Now().Add(-time.Hour)
	r.mu.Unlock()
	r.TryConsume(ctx, "active")

	removed := r.Cleanup(30 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, r.Len())
}

// slowSettings simulates storage latency on every read.
type slowSettings struct {
	fakeSettings
	delay time.Duration
}

func (s *slowSettings) GetInt(ctx context.Context, key string, def int) (int, error) {
	time.Sleep(s.delay)
	return s.fakeSettings.GetInt(ctx, key, def)
}

func (s *slowSettings) GetDuration(ctx context.Context, key string, def time.Duration) (time.Duration, error) {
	time.Sleep(s.delay)
	return s.fakeSettings.GetDuration(ctx, key, def)
}

func TestRegistry_NewIdentifiersDoNotSerializeOnConfigReads(t *testing.T) {
	const (
		workers = 8
		delay   = 30 * time.Millisecond
	)
	// each bucket creation costs two settings reads (capacity, refill)
	r := NewRegistry(&slowSettings{delay: delay}, logger.Nop())
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.True(t, r.TryConsume(ctx, fmt.Sprintf("10.0.0.%d", i)))
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// serialized creation would take workers*2*delay (480ms); parallel
	// config reads keep it near 2*delay
	assert.Less(t, elapsed, workers*2*delay/2,
		"bucket creation for distinct identifiers serialized on config reads")
	assert.Equal(t, workers, r.Len())
}

func TestRegistry_ExistingBucketSkipsConfigReads(t *testing.T) {
	slow := &slowSettings{delay: 20 * time.Millisecond}
	r := NewRegistry(slow, logger.Nop())
	ctx := context.Background()

	r.TryConsume(ctx, "10.0.0.1")

	start := time.Now()
	r.TryConsume(ctx, "10.0.0.1")
	assert.Less(t, time.Since(start), slow.delay,
		"consuming from an existing bucket should not consult settings")
}
