// Package cache implements the cache-tier repository surfaces
// (CheckpointStore, RollingContextStore) against Redis, grounded on the
// teacher's pkg/cache Manager's get/set-with-ctxzap-logging shape, adapted
// from string blobs to the typed rolling-context/checkpoint payloads via
// JSON encoding.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"tradeforge-core/internal/domain"
)

type CheckpointStore struct {
	client *redis.Client
}

func NewCheckpointStore(client *redis.Client) *CheckpointStore {
	return &CheckpointStore{client: client}
}

func (s *CheckpointStore) Get(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, bool, error) {
	key := domain.CollectionCheckpoint{Ticker: ticker, Timeframe: tf}.CacheKey()
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	var cp domain.CollectionCheckpoint
	if err := json.Unmarshal([]byte(val), &cp); err != nil {
		return time.Time{}, false, err
	}
	return cp.LastCandleBegin, true, nil
}

func (s *CheckpointStore) Set(ctx context.Context, ticker string, tf domain.Timeframe, lastBegin time.Time) error {
	cp := domain.CollectionCheckpoint{Ticker: ticker, Timeframe: tf, LastCandleBegin: lastBegin}
	payload, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cp.CacheKey(), payload, 0).Err()
}
