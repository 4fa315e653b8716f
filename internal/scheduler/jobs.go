package scheduler

import (
	"context"
	"time"

	adomain "github.com/errolitolopez/user-access-manager/internal/audit/domain"
	ausvc "github.com/errolitolopez/user-access-manager/internal/audit/service"
	"github.com/errolitolopez/user-access-manager/internal/platform/ratelimit"
	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
	udomain "github.com/errolitolopez/user-access-manager/internal/users/domain"
)

// UnlockJob releases locks whose last failed login is older than the
// unlock window. A lock is therefore a timed penalty, not a permanent
// state.
type UnlockJob struct {
	Users    udomain.Repository
	Settings sdomain.Service
	Pub      adomain.Publisher
}

func (j *UnlockJob) Name() string { return "unlock_accounts" }

func (j *UnlockJob) Run(ctx context.Context) (int, error) {
	window, err := j.Settings.GetInt(ctx, sdomain.KeyUnlockMinutes, 30)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-time.Duration(window) * time.Minute)

	locked, err := j.Users.FindLockedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(locked) == 0 {
		return 0, nil
	}

	for i := range locked {
		locked[i].AccountLocked = false
		locked[i].FailedLoginAttempts = 0
		locked[i].LastFailedLoginTime = nil
	}
	if err := j.Users.SaveAll(ctx, locked); err != nil {
		return 0, err
	}
	_ = j.Pub.PublishBatch(ctx, batchEvents(adomain.TypeAccountUnlocked, locked))
	return len(locked), nil
}

// AccountExpirationJob flags accounts whose expiration date has passed.
type AccountExpirationJob struct {
	Users udomain.Repository
	Pub   adomain.Publisher
}

func (j *AccountExpirationJob) Name() string { return "expire_accounts" }

func (j *AccountExpirationJob) Run(ctx context.Context) (int, error) {
	expiring, err := j.Users.FindExpiringBefore(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if len(expiring) == 0 {
		return 0, nil
	}

	for i := range expiring {
		expiring[i].AccountExpired = true
	}
	if err := j.Users.SaveAll(ctx, expiring); err != nil {
		return 0, err
	}
	_ = j.Pub.PublishBatch(ctx, batchEvents(adomain.TypeAccountExpired, expiring))
	return len(expiring), nil
}

// CredentialExpirationJob flags credentials older than the configured
// lifetime.
type CredentialExpirationJob struct {
	Users    udomain.Repository
	Settings sdomain.Service
	Pub      adomain.Publisher
}

func (j *CredentialExpirationJob) Name() string { return "expire_credentials" }

func (j *CredentialExpirationJob) Run(ctx context.Context) (int, error) {
	days, err := j.Settings.GetInt(ctx, sdomain.KeyCredentialDays, 90)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	stale, err := j.Users.FindCredentialsStaleBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	for i := range stale {
		stale[i].CredentialsExpired = true
	}
	if err := j.Users.SaveAll(ctx, stale); err != nil {
		return 0, err
	}
	_ = j.Pub.PublishBatch(ctx, batchEvents(adomain.TypeCredentialsExpired, stale))
	return len(stale), nil
}

// Refresher reloads a settings snapshot from storage.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// ConfigRefreshJob reloads the settings snapshot so dynamic tunables
// picked up here reach the hot paths without a restart or a per-request
// storage read.
type ConfigRefreshJob struct {
	Settings Refresher
}

func (j *ConfigRefreshJob) Name() string { return "refresh_configs" }

func (j *ConfigRefreshJob) Run(ctx context.Context) (int, error) {
	return j.Settings.Refresh(ctx)
}

// CooldownSweepJob drops elapsed dedup entries and idle rate buckets so
// both in-memory stores stay bounded by live traffic.
type CooldownSweepJob struct {
	Cooldown *ausvc.Cooldown
	Registry *ratelimit.Registry
	MaxIdle  time.Duration
}

func (j *CooldownSweepJob) Name() string { return "sweep_cooldowns" }

func (j *CooldownSweepJob) Run(ctx context.Context) (int, error) {
	n := j.Cooldown.Sweep(ctx)
	if j.Registry != nil {
		n += j.Registry.Cleanup(j.MaxIdle)
	}
	return n, nil
}

func batchEvents(eventType string, users []udomain.User) []adomain.Event {
	now := time.Now()
	events := make([]adomain.Event, 0, len(users))
	for _, u := range users {
		events = append(events, adomain.Event{
			Actor: u.Username,
			Type:  eventType,
			Meta: map[string]string{
				"user_id":  u.ID.String(),
				"username": u.Username,
			},
			Time: now,
		})
	}
	return events
}
