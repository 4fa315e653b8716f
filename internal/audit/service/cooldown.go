package service

import (
	"context"
	"strings"
	"sync"
	"time"

	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
)

const defaultCooldownMinutes = 5

// Cooldown suppresses repeated emissions of the same actor+event-type
// pair within a configurable window. It keeps noise (steady failed-login
// streams, brute-force probes) out of the audit trail while guaranteeing
// the first occurrence always gets through.
//
// The window is measured from the last allowed emission: suppressed
// attempts do not refresh the timestamp, so a steady stream of identical
// events emits exactly once per window.
type Cooldown struct {
	settings sdomain.Service
	entries  sync.Map // key -> time.Time of last allowed emission
}

func NewCooldown(settings sdomain.Service) *Cooldown {
	return &Cooldown{settings: settings}
}

// Allow reports whether the caller should emit the event. The key is the
// event type joined with the non-empty key parts; the decision is a
// single atomic check-and-set per key, so two racing callers cannot both
// win one emission slot.
func (c *Cooldown) Allow(ctx context.Context, eventType string, keyParts ...string) bool {
	key := cooldownKey(eventType, keyParts)
	now := time.Now()

	prev, loaded := c.entries.LoadOrStore(key, now)
	if !loaded {
		return true
	}
	last, ok := prev.(time.Time)
	if !ok {
		// unexpected entry type; fail open and repair
		c.entries.Store(key, now)
		return true
	}
	if now.Sub(last) < c.window(ctx) {
		return false
	}
	// Window elapsed. CompareAndSwap so only one of N concurrent callers
	// claims the fresh window; losers are suppressed.
	return c.entries.CompareAndSwap(key, prev, now)
}

// Sweep drops entries whose last emission is older than the current
// window. Run from a timer so one-off actors (distinct unauthenticated
// addresses) do not grow the map without bound. Returns how many entries
// were removed.
func (c *Cooldown) Sweep(ctx context.Context) int {
	window := c.window(ctx)
	cutoff := time.Now().Add(-window)
	removed := 0
	c.entries.Range(func(key, value any) bool {
		last, ok := value.(time.Time)
		if !ok || last.Before(cutoff) {
			if c.entries.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})
	return removed
}

func (c *Cooldown) window(ctx context.Context) time.Duration {
	minutes, _ := c.settings.GetInt(ctx, sdomain.KeyCooldownMinutes, defaultCooldownMinutes)
	if minutes <= 0 {
		minutes = defaultCooldownMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func cooldownKey(eventType string, parts []string) string {
	b := strings.Builder{}
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	if b.Len() > 0 {
		b.WriteByte(':')
	}
	b.WriteString(eventType)
	return b.String()
}
