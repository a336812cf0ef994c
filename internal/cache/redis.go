package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/p0mvn/swaprouter/internal/models"
)

const (
	recentSettlementsKey = "settlements:recent"
	recentSettlementsMax = 500
)

// RedisCache keeps the hot audit trail: a capped list of recent settlement
// events plus their pub/sub fanout.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}
}

func (r *RedisCache) AddRecentSettlement(ctx context.Context, ev *models.SettlementEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal settlement: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentSettlementsKey, b)
	pipe.LTrim(ctx, recentSettlementsKey, 0, recentSettlementsMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent settlement: %w", err)
	}
	return nil
}

func (r *RedisCache) GetRecentSettlements(ctx context.Context, limit int64) ([]*models.SettlementEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	vals, err := r.client.LRange(ctx, recentSettlementsKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent settlements: %w", err)
	}

	out := make([]*models.SettlementEvent, 0, len(vals))
	for _, v := range vals {
		var ev models.SettlementEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			r.logger.WithError(err).Warn("skipping undecodable settlement entry")
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

// PublishSettlement fans a settlement event out to the settlement channels.
func (r *RedisCache) PublishSettlement(ctx context.Context, ev *models.SettlementEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	channels := []string{
		channelSettlementsAll,
		fmt.Sprintf(channelSettlementsPair, ev.Pair),
	}

	pipe := r.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
