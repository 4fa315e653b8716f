package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
)

// Service reads tunables from an in-memory snapshot of the config
// table. The snapshot is loaded by Refresh (at startup and from a
// scheduled job), so the hot paths that consult settings on every
// request never touch storage. Before the first successful Refresh the
// getters read through to the repository.
type Service struct {
	repo sdomain.Repository

	mu     sync.RWMutex
	cache  map[string]string
	primed bool
}

func New(repo sdomain.Repository) *Service { return &Service{repo: repo} }

// Refresh replaces the snapshot with the repository's current contents
// and returns how many keys were loaded. On error the previous
// snapshot stays in place, so a storage blip degrades to stale values
// rather than defaults.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	snapshot, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.cache = snapshot
	s.primed = true
	s.mu.Unlock()
	return len(snapshot), nil
}

func (s *Service) lookup(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	if s.primed {
		v, ok := s.cache[key]
		s.mu.RUnlock()
		return v, ok, nil
	}
	s.mu.RUnlock()
	return s.repo.Get(ctx, key)
}

func (s *Service) GetString(ctx context.Context, key string, def string) (string, error) {
	v, ok, err := s.lookup(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	return v, nil
}

func (s *Service) GetInt(ctx context.Context, key string, def int) (int, error) {
	v, err := s.GetString(ctx, key, "")
	if err != nil || v == "" {
		return def, err
	}
	n, perr := strconv.Atoi(v)
	if perr != nil {
		return def, nil
	}
	return n, nil
}

func (s *Service) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	v, err := s.GetString(ctx, key, "")
	if err != nil || v == "" {
		return def, err
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		return def, nil
	}
	return b, nil
}

func (s *Service) GetDuration(ctx context.Context, key string, def time.Duration) (time.Duration, error) {
	v, err := s.GetString(ctx, key, "")
	if err != nil || v == "" {
		return def, err
	}
	d, perr := time.ParseDuration(v)
	if perr != nil {
		return def, nil
	}
	return d, nil
}

func (s *Service) GetStrings(ctx context.Context, key string, def []string) ([]string, error) {
	v, err := s.GetString(ctx, key, "")
	if err != nil || v == "" {
		return def, err
	}
	parts := strings.Split(v, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	if len(res) == 0 {
		return def, nil
	}
	return res, nil
}

// MissingKeys returns the subset of keys with no stored value. Used at
// startup to warn operators which tunables are running on defaults.
func (s *Service) MissingKeys(ctx context.Context, keys []string) ([]string, error) {
	var missing []string
	for _, k := range keys {
		_, ok, err := s.lookup(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}
