package domain

import (
	"context"
	"time"
)

// Service provides typed access to dynamic application settings.
// Every getter falls back to the supplied default when the key is
// absent, disabled, or unparseable, so callers always get a usable value.
type Service interface {
	GetString(ctx context.Context, key string, def string) (string, error)
	GetInt(ctx context.Context, key string, def int) (int, error)
	GetBool(ctx context.Context, key string, def bool) (bool, error)
	GetDuration(ctx context.Context, key string, def time.Duration) (time.Duration, error)
	// GetStrings parses a comma-separated value into trimmed non-empty parts.
	GetStrings(ctx context.Context, key string, def []string) ([]string, error)
}

// Repository abstracts storage of application settings.
type Repository interface {
	// Get returns (value, found, err) for an exact key. Disabled rows
	// report found=false.
	Get(ctx context.Context, key string) (string, bool, error)
	Upsert(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
}

// Keys for all runtime security tunables. Each carries a hardcoded
// fallback default at its call site, so a missing row is never fatal.
const (
	KeyJWTSecret = "security.jwt.secret"
	KeyJWTTTL    = "security.jwt.ttl"

	KeyMaxFailedAttempts   = "security.max.failed.attempts"
	KeyLockoutResetMinutes = "security.lockout.reset.minutes"
	KeyUnlockMinutes       = "security.unlock.minutes"
	KeyAccountExpiryYears  = "security.account.expiration.years"
	KeyCredentialDays      = "security.credential.expiration.days"

	KeyCooldownMinutes = "audit.cooldown.minutes"

	KeyRateLimitEnabled      = "rate.limit.enabled"
	KeyRateLimitCapacity     = "rate.limit.capacity"
	KeyRateLimitRefill       = "rate.limit.refill.duration"
	KeyRateLimitIncludedURLs = "rate.limit.included-urls"
	KeyRateLimitExcludedURLs = "rate.limit.excluded-urls"
)

// AllKeys is the explicit list of known setting keys, used to warn about
// missing entries at startup. Kept as a static slice on purpose; no
// reflection over the constants.
func AllKeys() []string {
	return []string{
		KeyJWTSecret,
		KeyJWTTTL,
		KeyMaxFailedAttempts,
		KeyLockoutResetMinutes,
		KeyUnlockMinutes,
		KeyAccountExpiryYears,
		KeyCredentialDays,
		KeyCooldownMinutes,
		KeyRateLimitEnabled,
		KeyRateLimitCapacity,
		KeyRateLimitRefill,
		KeyRateLimitIncludedURLs,
		KeyRateLimitExcludedURLs,
	}
}
