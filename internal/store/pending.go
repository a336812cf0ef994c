package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/p0mvn/swaprouter/internal/models"
	"github.com/p0mvn/swaprouter/internal/storage"
)

const (
	pendingSeqKey   = "router:pending:seq"
	pendingIndexKey = "router:pending:index"
	pendingPrefix   = "router:pending:"
)

// PendingStore persists in-flight swaps keyed by correlation id. Ids come
// from a monotone counter, so two concurrently pending swaps can never
// collide or overwrite one another.
type PendingStore struct {
	client redis.Cmdable
}

func NewPendingStore(client redis.Cmdable) (*PendingStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &PendingStore{client: client}, nil
}

// NextCorrelationID allocates a fresh id. Ids are never reused.
func (s *PendingStore) NextCorrelationID(ctx context.Context) (uint64, error) {
	id, err := s.client.Incr(ctx, pendingSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("next correlation id: %w", err)
	}
	return uint64(id), nil
}

// Put stores a pending swap. At most one entry may exist per correlation id;
// a duplicate id is a correctness bug, not an overwrite.
func (s *PendingStore) Put(ctx context.Context, swap *models.PendingSwap) error {
	b, err := json.Marshal(swap)
	if err != nil {
		return fmt.Errorf("marshal pending swap: %w", err)
	}

	ok, err := s.client.SetNX(ctx, pendingKey(swap.CorrelationID), b, 0).Result()
	if err != nil {
		return fmt.Errorf("put pending swap: %w", err)
	}
	if !ok {
		return fmt.Errorf("pending swap %d already exists", swap.CorrelationID)
	}

	if err := s.client.SAdd(ctx, pendingIndexKey, swap.CorrelationID).Err(); err != nil {
		return fmt.Errorf("index pending swap: %w", err)
	}
	return nil
}

// Take atomically reads and deletes the entry for correlationID, returning
// storage.ErrNotFound if absent. Deletion happens before the caller acts on
// the entry, so a redelivered result can never settle twice.
func (s *PendingStore) Take(ctx context.Context, correlationID uint64) (*models.PendingSwap, error) {
	val, err := s.client.GetDel(ctx, pendingKey(correlationID)).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take pending swap: %w", err)
	}

	_ = s.client.SRem(ctx, pendingIndexKey, correlationID).Err()

	var swap models.PendingSwap
	if err := json.Unmarshal([]byte(val), &swap); err != nil {
		return nil, fmt.Errorf("unmarshal pending swap: %w", err)
	}
	return &swap, nil
}

func (s *PendingStore) Delete(ctx context.Context, correlationID uint64) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, pendingKey(correlationID))
	pipe.SRem(ctx, pendingIndexKey, correlationID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete pending swap: %w", err)
	}
	return nil
}

// List returns the correlation ids of every in-flight swap. There is no
// expiry at this layer; a swap whose result never arrives stays listed so an
// operator can spot it.
func (s *PendingStore) List(ctx context.Context) ([]uint64, error) {
	members, err := s.client.SMembers(ctx, pendingIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending index: %w", err)
	}

	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pendingKey(correlationID uint64) string {
	return pendingPrefix + strconv.FormatUint(correlationID, 10)
}
