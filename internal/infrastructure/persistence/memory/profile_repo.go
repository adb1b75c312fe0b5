// Package memory provides in-process implementations of the storage ports.
// They back the "memory" storage driver and the application tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// ProfileRepository is a mutex-guarded map of profiles.
type ProfileRepository struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
	now      func() time.Time
}

// NewProfileRepository creates an empty repository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		profiles: make(map[string]*profile.Profile),
		now:      time.Now,
	}
}

// Get returns a copy of the stored profile.
func (r *ProfileRepository) Get(ctx context.Context, id profile.Identity) (*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id.Key()]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p.Clone(), nil
}

// Update holds the repository lock for the whole read-modify-write.
func (r *ProfileRepository) Update(ctx context.Context, id profile.Identity, fn profile.UpdateFunc) (*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := id.Key()
	if key == "" {
		return nil, shared.ErrMissingIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	current, exists := r.profiles[key]
	var working *profile.Profile
	if exists {
		working = current.Clone()
	} else {
		working = profile.New(id, now)
	}

	if err := fn(working, exists); err != nil {
		return nil, err
	}

	working.Key = key
	working.Version++
	working.Touch(now)
	r.profiles[key] = working
	return working.Clone(), nil
}

// Delete removes the profile.
func (r *ProfileRepository) Delete(ctx context.Context, id profile.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, id.Key())
	return nil
}

// List pages through profiles in key order.
func (r *ProfileRepository) List(ctx context.Context, afterKey string, limit int) ([]*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		if k > afterKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]*profile.Profile, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.profiles[k].Clone())
	}
	return out, nil
}

// Ping always succeeds.
func (r *ProfileRepository) Ping(context.Context) error { return nil }
