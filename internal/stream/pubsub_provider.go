package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/p0mvn/swaprouter/internal/cache"
	"github.com/p0mvn/swaprouter/internal/storage"
)

// PubSubProvider implements ResultProvider on top of the redis trade-result
// channel. Preferred over polling when the venue bridge publishes to redis.
type PubSubProvider struct {
	subscriber *cache.Subscriber
	logger     *logrus.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func NewPubSubProvider(subscriber *cache.Subscriber, logger *logrus.Logger) *PubSubProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubProvider{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Start blocks consuming trade results until ctx is cancelled or Stop is called.
func (p *PubSubProvider) Start(ctx context.Context, handler storage.ResultHandler) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("provider already running")
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	return p.subscriber.SubscribeTradeResults(ctx, handler)
}

func (p *PubSubProvider) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.running = false
	return nil
}
