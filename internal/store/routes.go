package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/redis/go-redis/v9"

	"github.com/p0mvn/swaprouter/internal/models"
	"github.com/p0mvn/swaprouter/internal/storage"
)

const (
	routeIndexKey = "router:routes:index"
	routePrefix   = "router:routes:"
)

var denomRe = regexp.MustCompile(`^[a-zA-Z0-9/._-]{1,128}$`)

// ValidateDenom rejects denoms that cannot be embedded in a store key.
func ValidateDenom(denom string) error {
	if !denomRe.MatchString(denom) {
		return fmt.Errorf("invalid denom")
	}
	return nil
}

// RouteStore is the persistent routing table keyed by (input denom, output
// denom). Set overwrites; there is no merge and no versioning. An
// unconfigured pair has no implicit default.
type RouteStore struct {
	client redis.Cmdable
}

func NewRouteStore(client redis.Cmdable) (*RouteStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RouteStore{client: client}, nil
}

func (s *RouteStore) Set(ctx context.Context, inputDenom, outputDenom string, route models.Route) error {
	if err := ValidateDenom(inputDenom); err != nil {
		return err
	}
	if err := ValidateDenom(outputDenom); err != nil {
		return err
	}

	b, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("marshal route: %w", err)
	}

	pair := routePair(inputDenom, outputDenom)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, routeKey(pair), b, 0)
	pipe.SAdd(ctx, routeIndexKey, pair)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save route: %w", err)
	}

	return nil
}

func (s *RouteStore) Get(ctx context.Context, inputDenom, outputDenom string) (models.Route, error) {
	if err := ValidateDenom(inputDenom); err != nil {
		return nil, err
	}
	if err := ValidateDenom(outputDenom); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, routeKey(routePair(inputDenom, outputDenom))).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}

	var route models.Route
	if err := json.Unmarshal([]byte(val), &route); err != nil {
		return nil, fmt.Errorf("unmarshal route: %w", err)
	}
	return route, nil
}

// Pairs lists every configured (input, output) pair as "input|output".
func (s *RouteStore) Pairs(ctx context.Context) ([]string, error) {
	pairs, err := s.client.SMembers(ctx, routeIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list route index: %w", err)
	}
	return pairs, nil
}

func routePair(inputDenom, outputDenom string) string {
	return inputDenom + "|" + outputDenom
}

func routeKey(pair string) string {
	return routePrefix + pair
}
