package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

type storedRun struct {
	data      []byte
	expiresAt time.Time
}

// RunStore keeps mission runs as JSON with a lazy expiry.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]storedRun
	ttl  time.Duration
	now  func() time.Time
}

// NewRunStore creates a store whose entries expire ttl after their last save.
func NewRunStore(ttl time.Duration) *RunStore {
	if ttl <= 0 {
		ttl = mission.DefaultRunTTL
	}
	return &RunStore{
		runs: make(map[string]storedRun),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *RunStore) Save(ctx context.Context, r *mission.Run) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = storedRun{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *RunStore) Get(ctx context.Context, id string) (*mission.Run, error) {
	s.mu.Lock()
	stored, ok := s.runs[id]
	if ok && !s.now().Before(stored.expiresAt) {
		delete(s.runs, id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, shared.ErrRunNotFound
	}
	var r mission.Run
	if err := json.Unmarshal(stored.data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RunStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
	return nil
}
