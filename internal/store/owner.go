package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/p0mvn/swaprouter/internal/storage"
)

const ownerKey = "router:owner"

// OwnerStore holds the single owner identity configured at bootstrap. The
// owner gates routing-table mutation; it is an explicit store entry, not
// ambient state, so ownership transfer stays atomic and auditable.
type OwnerStore struct {
	client redis.Cmdable
}

func NewOwnerStore(client redis.Cmdable) (*OwnerStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &OwnerStore{client: client}, nil
}

// Init sets the owner once. Subsequent calls are no-ops, preserving whatever
// identity was instantiated first.
func (s *OwnerStore) Init(ctx context.Context, owner string) error {
	if owner == "" {
		return fmt.Errorf("owner is empty")
	}
	if err := s.client.SetNX(ctx, ownerKey, owner, 0).Err(); err != nil {
		return fmt.Errorf("init owner: %w", err)
	}
	return nil
}

func (s *OwnerStore) Get(ctx context.Context) (string, error) {
	owner, err := s.client.Get(ctx, ownerKey).Result()
	if err == redis.Nil {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get owner: %w", err)
	}
	return owner, nil
}

// Transfer replaces the owner unconditionally. Gating against the current
// owner is the caller's responsibility.
func (s *OwnerStore) Transfer(ctx context.Context, newOwner string) error {
	if newOwner == "" {
		return fmt.Errorf("new owner is empty")
	}
	if err := s.client.Set(ctx, ownerKey, newOwner, 0).Err(); err != nil {
		return fmt.Errorf("transfer owner: %w", err)
	}
	return nil
}
