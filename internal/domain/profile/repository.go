package profile

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateFunc mutates a profile inside an atomic read-modify-write. exists is
// false when p was freshly created for the key. Returning an error aborts
// the write.
type UpdateFunc func(p *Profile, exists bool) error

// Repository stores profiles keyed by Identity.Key.
//
// Every implementation returns ErrStorageUnavailable (wrapped) when the
// backend cannot be reached, and ErrProfileNotFound from Get for unknown keys.
type Repository interface {
	// Get returns the profile for id.
	Get(ctx context.Context, id Identity) (*Profile, error)

	// Update loads or creates the profile for id, applies fn and persists the
	// result atomically with respect to concurrent Updates of the same key.
	Update(ctx context.Context, id Identity, fn UpdateFunc) (*Profile, error)

	// Delete removes the profile. Deleting an unknown key is not an error.
	Delete(ctx context.Context, id Identity) error

	// List returns up to limit profiles ordered by key, starting after the
	// given key. Used by admin tooling and season rollover.
	List(ctx context.Context, afterKey string, limit int) ([]*Profile, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
}
