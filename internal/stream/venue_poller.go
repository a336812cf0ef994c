package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/p0mvn/swaprouter/internal/storage"
	"github.com/p0mvn/swaprouter/internal/venue"
)

const resultBatchSize = 100

// VenuePoller implements ResultProvider by polling the venue's result
// endpoint. Used when the venue bridge does not publish to redis.
type VenuePoller struct {
	client       *venue.Client
	pollInterval time.Duration
	logger       *logrus.Logger

	mu      sync.RWMutex
	cursor  uint64
	running bool
}

// VenuePollerConfig holds configuration for the venue poller
type VenuePollerConfig struct {
	Client       *venue.Client
	PollInterval time.Duration
	Logger       *logrus.Logger
}

// NewVenuePoller creates a new venue result poller
func NewVenuePoller(cfg VenuePollerConfig) *VenuePoller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	return &VenuePoller{
		client:       cfg.Client,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}
}

// Start begins polling for trade results
func (p *VenuePoller) Start(ctx context.Context, handler storage.ResultHandler) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.logger.WithField("interval", p.pollInterval).Info("starting venue result polling")

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return ctx.Err()

		case <-ticker.C:
			if err := p.poll(ctx, handler); err != nil {
				p.logger.WithError(err).Error("poll error")
			}
		}
	}
}

// Stop stops the poller
func (p *VenuePoller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	return nil
}

// poll fetches results newer than the cursor and hands them off in order
func (p *VenuePoller) poll(ctx context.Context, handler storage.ResultHandler) error {
	p.mu.RLock()
	cursor := p.cursor
	p.mu.RUnlock()

	results, err := p.client.SwapResults(ctx, cursor, resultBatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch results: %w", err)
	}

	if len(results) == 0 {
		p.logger.Debug("no new trade results")
		return nil
	}

	p.logger.WithField("count", len(results)).Info("found new trade results")

	for _, result := range results {
		if result == nil {
			continue
		}

		handler(result)

		// Advance after the handler returns so a crash mid-batch replays the
		// remainder rather than dropping it.
		p.mu.Lock()
		if result.CorrelationID > p.cursor {
			p.cursor = result.CorrelationID
		}
		p.mu.Unlock()
	}

	return nil
}
