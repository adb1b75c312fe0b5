package mission

import (
	"context"
	"time"
)

// DefaultRunTTL bounds how long an idle run is kept.
const DefaultRunTTL = 24 * time.Hour

// RunRepository keeps transient runs. Runs are never written to the
// profile store.
type RunRepository interface {
	// Save stores r, refreshing its expiry.
	Save(ctx context.Context, r *Run) error

	// Get returns the run or ErrRunNotFound once it expired or was deleted.
	Get(ctx context.Context, id string) (*Run, error)

	// Delete removes the run. Unknown ids are ignored.
	Delete(ctx context.Context, id string) error
}
