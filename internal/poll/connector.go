package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joshua-vybe/feedbridge/internal/breaker"
	"github.com/joshua-vybe/feedbridge/internal/bus"
	"github.com/joshua-vybe/feedbridge/internal/cache"
	"github.com/joshua-vybe/feedbridge/internal/metrics"
	"github.com/joshua-vybe/feedbridge/internal/model"
	"github.com/joshua-vybe/feedbridge/internal/rest"
)

// Source is the connector's source label.
const Source = "crypto"

// Config holds poll connector configuration.
type Config struct {
	Interval time.Duration // poll interval (default: 1s)
	CacheTTL time.Duration // latest-value cache TTL (default: 1s)
	AssetIDs []string      // asset basket, primary-provider identifiers

	PrimaryURL      string
	SecondaryURL    string
	SecondaryAPIKey string // secondary endpoint joins the rotation only when set
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		CacheTTL: time.Second,
	}
}

// Connector polls the crypto price feed across a rotating endpoint
// list and republishes normalized ticks.
type Connector struct {
	cfg     Config
	breaker *breaker.Breaker
	bus     bus.Publisher
	cache   cache.Setter
	metrics *metrics.Metrics
	logger  *slog.Logger

	endpoints []*endpoint
	current   int

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates the poll connector. The secondary provider is appended
// to the endpoint list only when its API key is configured.
func New(
	cfg Config,
	publisher bus.Publisher,
	cacheSetter cache.Setter,
	br *breaker.Breaker,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", Source)

	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Second
	}

	endpoints := []*endpoint{
		newCoinGeckoEndpoint(rest.New(cfg.PrimaryURL, rest.WithLogger(logger)), cfg.AssetIDs),
	}
	if cfg.SecondaryAPIKey != "" {
		endpoints = append(endpoints, newCryptoCompareEndpoint(
			rest.New(cfg.SecondaryURL, rest.WithLogger(logger)),
			cfg.SecondaryAPIKey,
			cfg.AssetIDs,
		))
	}

	return &Connector{
		cfg:       cfg,
		breaker:   br,
		bus:       publisher,
		cache:     cacheSetter,
		metrics:   m,
		logger:    logger,
		endpoints: endpoints,
	}
}

// Start begins the polling loop.
func (c *Connector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	c.metrics.SetConnectorUp(Source, true)
	c.logger.Info("poll connector started",
		"interval", c.cfg.Interval,
		"assets", len(c.cfg.AssetIDs),
		"endpoints", len(c.endpoints),
	)
	return nil
}

// Stop shuts down the polling loop. Safe to call more than once.
func (c *Connector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.metrics.SetConnectorUp(Source, false)
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("poll connector stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (c *Connector) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	c.pollOnce()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce()
		}
	}
}

// pollOnce fetches prices from the current endpoint through the
// breaker; on any failure it rotates to the next endpoint for the
// next cycle.
func (c *Connector) pollOnce() {
	ep := c.endpoints[c.current]

	var ticks []model.Tick
	err := c.breaker.Execute(c.ctx, func(ctx context.Context) error {
		var fetchErr error
		ticks, fetchErr = ep.fetch(ctx)
		return fetchErr
	})
	if err != nil {
		c.logger.Warn("poll failed", "endpoint", ep.name, "error", err)
		c.rotateEndpoint()
		return
	}

	for _, tick := range ticks {
		c.publish(tick)
	}
}

// publish sends a tick to its topic and write-through caches it.
func (c *Connector) publish(tick model.Tick) {
	topic := bus.CryptoTickTopic(tick.Market)
	res := c.bus.Publish(c.ctx, topic, tick.Market, tick)
	if !res.Success {
		c.logger.Warn("tick publish failed", "market", tick.Market, "topic", topic)
	}

	c.cache.Set(c.ctx, cache.PriceKey(tick.Market), tick, c.cfg.CacheTTL)
}

// rotateEndpoint advances to the next endpoint. A single-entry list
// stays put.
func (c *Connector) rotateEndpoint() {
	c.current = (c.current + 1) % len(c.endpoints)
}
