package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// RunStore keeps mission runs as JSON strings. Each save refreshes the TTL.
type RunStore struct {
	client *Client
	ttl    time.Duration
}

// NewRunStore creates a run store.
func NewRunStore(client *Client, ttl time.Duration) *RunStore {
	if ttl <= 0 {
		ttl = mission.DefaultRunTTL
	}
	return &RunStore{client: client, ttl: ttl}
}

func (s *RunStore) Save(ctx context.Context, r *mission.Run) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", r.ID, err)
	}
	return mapError("Save", s.client.rdb.Set(ctx, s.client.keys.RunKey(r.ID), data, s.ttl).Err())
}

func (s *RunStore) Get(ctx context.Context, id string) (*mission.Run, error) {
	data, err := s.client.rdb.Get(ctx, s.client.keys.RunKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrRunNotFound
		}
		return nil, mapError("Get", err)
	}
	var r mission.Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &r, nil
}

func (s *RunStore) Delete(ctx context.Context, id string) error {
	return mapError("Delete", s.client.rdb.Del(ctx, s.client.keys.RunKey(id)).Err())
}
