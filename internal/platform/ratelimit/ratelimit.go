package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
)

const (
	defaultCapacity   = 500
	defaultRefill     = time.Minute
	defaultMaxEntries = 10000
)

// entry tracks one identifier's bucket and its last access time.
type entry struct {
	identifier string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Registry provides per-identifier admission control using the token
// bucket algorithm, with LRU eviction so the tracked-identifier set
// stays bounded.
//
// Buckets are created lazily with the capacity and refill period that
// are configured at creation time. A configuration change applies to
// buckets created afterwards; live buckets keep their original shape
// until they are evicted and recreated. That eventual consistency is
// intentional.
type Registry struct {
	settings sdomain.Service
	log      zerolog.Logger

	mu         sync.Mutex
	entries    map[string]*list.Element // identifier -> *entry element
	lru        *list.List
	maxEntries int
}

func NewRegistry(settings sdomain.Service, log zerolog.Logger) *Registry {
	return &Registry{
		settings:   settings,
		log:        log,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: defaultMaxEntries,
	}
}

// TryConsume atomically removes one token from the identifier's bucket
// and reports whether it succeeded. It never blocks or queues: the
// answer is an immediate accept/reject decision.
//
// The bucket shape is read from settings before the lock is taken, so
// creating a bucket for a new identifier never stalls traffic on
// existing ones.
func (r *Registry) TryConsume(ctx context.Context, identifier string) bool {
	now := time.Now()

	if lim, ok := r.touch(identifier, now); ok {
		return lim.Allow()
	}

	capacity, refill := r.bucketConfig(ctx)

	r.mu.Lock()
	// another caller may have created the bucket while we were reading
	// the config; theirs wins
	if elem, ok := r.entries[identifier]; ok {
		r.lru.MoveToFront(elem)
		en := elem.Value.(*entry)
		en.lastAccess = now
		lim := en.limiter
		r.mu.Unlock()
		return lim.Allow()
	}

	if r.maxEntries > 0 && len(r.entries) >= r.maxEntries {
		r.evictOldest()
	}

	en := &entry{
		identifier: identifier,
		limiter:    rate.NewLimiter(rate.Every(refill/time.Duration(capacity)), capacity),
		lastAccess: now,
	}
	r.entries[identifier] = r.lru.PushFront(en)
	lim := en.limiter
	r.mu.Unlock()
	return lim.Allow()
}

// touch returns the identifier's limiter if a bucket already exists,
// refreshing its LRU position.
func (r *Registry) touch(identifier string, now time.Time) (*rate.Limiter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	elem, ok := r.entries[identifier]
	if !ok {
		return nil, false
	}
	r.lru.MoveToFront(elem)
	en := elem.Value.(*entry)
	en.lastAccess = now
	return en.limiter, true
}

// Cleanup drops buckets idle longer than maxIdle and returns how many
// were removed. Run from a timer; abandoned identifiers are otherwise
// harmless garbage.
func (r *Registry) Cleanup(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	removed := 0

	r.mu.Lock()
	var next *list.Element
	for elem := r.lru.Back(); elem != nil; elem = next {
		next = elem.Prev()
		en := elem.Value.(*entry)
		if en.lastAccess.After(cutoff) {
			// list is access-ordered: everything further forward is fresher
			break
		}
		delete(r.entries, en.identifier)
		r.lru.Remove(elem)
		removed++
	}
	r.mu.Unlock()

	if removed > 0 {
		r.log.Debug().Int("removed", removed).Msg("rate limiter cleanup")
	}
	return removed
}

// Len reports how many identifiers are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// evictOldest removes the least recently used bucket. Caller holds mu.
func (r *Registry) evictOldest() {
	elem := r.lru.Back()
	if elem == nil {
		return
	}
	en := elem.Value.(*entry)
	delete(r.entries, en.identifier)
	r.lru.Remove(elem)
	r.log.Debug().Str("identifier", en.identifier).Msg("rate limiter LRU eviction")
}

func (r *Registry) bucketConfig(ctx context.Context) (int, time.Duration) {
	capacity, _ := r.settings.GetInt(ctx, sdomain.KeyRateLimitCapacity, defaultCapacity)
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	refill, _ := r.settings.GetDuration(ctx, sdomain.KeyRateLimitRefill, defaultRefill)
	if refill <= 0 {
		refill = defaultRefill
	}
	return capacity, refill
}
