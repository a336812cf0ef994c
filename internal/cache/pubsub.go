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
	channelSettlementsAll  = "settlements:all"
	channelSettlementsPair = "settlements:pair:%s"
	channelTradeResults    = "trades:results"
)

// Subscriber consumes messages from the redis channels the router publishes
// and the venue bridge writes to.
type Subscriber struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewSubscriber(client *redis.Client, logger *logrus.Logger) *Subscriber {
	if logger == nil {
		logger = logrus.New()
	}
	return &Subscriber{client: client, logger: logger}
}

// SubscribeTradeResults blocks consuming the trade-result channel until ctx is
// cancelled, invoking handler once per decoded result. Undecodable payloads
// are logged and dropped.
func (s *Subscriber) SubscribeTradeResults(ctx context.Context, handler func(*models.TradeResult)) error {
	sub := s.client.Subscribe(ctx, channelTradeResults)
	defer sub.Close()

	// Confirm the subscription before consuming.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	s.logger.WithField("channel", channelTradeResults).Info("subscribed to trade results")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var result models.TradeResult
			if err := json.Unmarshal([]byte(msg.Payload), &result); err != nil {
				s.logger.WithError(err).Warn("dropping undecodable trade result")
				continue
			}
			handler(&result)
		}
	}
}

// SubscribeSettlements consumes the settlement fanout. Pass an empty pair to
// receive every settlement.
func (s *Subscriber) SubscribeSettlements(ctx context.Context, pair string, handler func(*models.SettlementEvent)) error {
	channel := channelSettlementsAll
	if pair != "" {
		channel = fmt.Sprintf(channelSettlementsPair, pair)
	}

	sub := s.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	s.logger.WithField("channel", channel).Info("subscribed to settlements")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.SettlementEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.WithError(err).Warn("dropping undecodable settlement")
				continue
			}
			handler(&ev)
		}
	}
}
