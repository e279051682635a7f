package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshua-vybe/feedbridge/internal/backoff"
	"github.com/joshua-vybe/feedbridge/internal/breaker"
	"github.com/joshua-vybe/feedbridge/internal/bus"
	"github.com/joshua-vybe/feedbridge/internal/cache"
	"github.com/joshua-vybe/feedbridge/internal/metrics"
	"github.com/joshua-vybe/feedbridge/internal/model"
	"github.com/joshua-vybe/feedbridge/internal/rest"
)

// Source is the connector's source label.
const Source = "kalshi"

// ConnState is the connector's connection state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnectScheduled
)

// StatusSink receives observed event status values. Satisfied by
// status.Tracker.
type StatusSink interface {
	UpdateEventStatus(ctx context.Context, eventID, source, status string) bool
}

// Config holds stream connector configuration.
type Config struct {
	WSEndpoints   []string // push endpoints, rotated on connect failure
	RESTEndpoints []string // fallback poll endpoints, rotated independently
	AuthToken     string   // included in the subscribe command when set
	Markets       []string

	ConnectTimeout   time.Duration // default 10s
	PingInterval     time.Duration // default 10s
	FallbackInterval time.Duration // default 5s
	CacheTTL         time.Duration // default 5s
	Reconnect        backoff.Policy
}

func (cfg *Config) applyDefaults() {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.FallbackInterval == 0 {
		cfg.FallbackInterval = 5 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Second
	}
	if cfg.Reconnect == (backoff.Policy{}) {
		cfg.Reconnect = backoff.DefaultPolicy()
	}
}

// Connector maintains the push connection, normalizes inbound
// messages, and polls REST as a tick fallback while disconnected.
type Connector struct {
	cfg     Config
	breaker *breaker.Breaker
	bus     bus.Publisher
	cache   cache.Setter
	status  StatusSink
	metrics *metrics.Metrics
	logger  *slog.Logger

	wsIndex     int // guarded by connect flow (single goroutine)
	restClients []*rest.Client
	restIndex   int // fallback goroutine only

	sched *backoff.Schedule
	state atomic.Int32

	clientMu sync.Mutex
	client   *Client

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	fallbackMu     sync.Mutex
	fallbackCancel context.CancelFunc
}

// New creates the stream connector.
func New(
	cfg Config,
	publisher bus.Publisher,
	cacheSetter cache.Setter,
	sink StatusSink,
	br *breaker.Breaker,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	restClients := make([]*rest.Client, 0, len(cfg.RESTEndpoints))
	for _, base := range cfg.RESTEndpoints {
		restClients = append(restClients, rest.New(base, rest.WithLogger(logger)))
	}

	return &Connector{
		cfg:         cfg,
		breaker:     br,
		bus:         publisher,
		cache:       cacheSetter,
		status:      sink,
		metrics:     m,
		logger:      logger.With("source", Source),
		restClients: restClients,
		sched:       backoff.NewSchedule(cfg.Reconnect),
	}
}

// Start begins connecting.
func (c *Connector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.connect()
	}()

	c.metrics.SetConnectorUp(Source, true)
	c.logger.Info("stream connector started",
		"endpoints", len(c.cfg.WSEndpoints),
		"markets", len(c.cfg.Markets),
	)
	return nil
}

// Stop cancels all timers, stops the fallback poll, and closes any
// open socket. Safe to call more than once.
func (c *Connector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.stopFallback()

		c.clientMu.Lock()
		if c.client != nil {
			c.client.Close()
		}
		c.clientMu.Unlock()

		c.metrics.SetConnectorUp(Source, false)
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("stream connector stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current connection state.
func (c *Connector) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Connector) setState(s ConnState) {
	c.state.Store(int32(s))
}

// connect dials the current endpoint and subscribes, all through the
// breaker. Connect-time failures rotate the endpoint list; a
// successful connect resets the reconnect schedule and stops the
// fallback poll.
func (c *Connector) connect() {
	if c.ctx.Err() != nil {
		return
	}
	c.setState(StateConnecting)

	endpoint := c.cfg.WSEndpoints[c.wsIndex]
	client := NewClient(ClientConfig{
		URL:            endpoint,
		ConnectTimeout: c.cfg.ConnectTimeout,
		PingInterval:   c.cfg.PingInterval,
		PingTimeout:    3 * c.cfg.PingInterval,
		WriteTimeout:   5 * time.Second,
		BufferSize:     1000,
	}, c.logger)

	err := c.breaker.Execute(c.ctx, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()

		if err := client.Connect(cctx); err != nil {
			return err
		}
		if err := c.sendSubscribe(client); err != nil {
			client.Close()
			return err
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("connect failed", "endpoint", endpoint, "error", err)
		c.setState(StateDisconnected)
		c.rotateWSEndpoint()
		c.scheduleReconnect()
		return
	}

	c.clientMu.Lock()
	c.client = client
	c.clientMu.Unlock()

	c.setState(StateConnected)
	c.sched.Reset()
	c.stopFallback()

	c.logger.Info("connected", "endpoint", endpoint)

	c.wg.Add(1)
	go c.readLoop(client)
}

// sendSubscribe sends the subscription command for the configured
// markets.
func (c *Connector) sendSubscribe(client *Client) error {
	cmd := subscribeCmd{
		Type:     "subscribe",
		Channels: []string{"orderbook_snapshot", "orderbook_delta", "event_status"},
		Markets:  c.cfg.Markets,
		Token:    c.cfg.AuthToken,
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return client.Send(data)
}

// readLoop consumes frames until the connection errors or the
// connector stops. A post-connect close reconnects without rotating.
func (c *Connector) readLoop(client *Client) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return

		case err := <-client.Errors():
			c.logger.Warn("connection lost", "error", err)
			client.Close()
			c.setState(StateDisconnected)
			c.scheduleReconnect()
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			c.handleMessage(msg.Data)
		}
	}
}

// handleMessage parses and dispatches one inbound frame. Malformed
// frames are logged and dropped; the connection stays open.
func (c *Connector) handleMessage(data []byte) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("malformed message dropped", "error", err)
		return
	}

	switch env.Type {
	case "orderbook_snapshot", "orderbook_delta":
		var w quoteWire
		if err := json.Unmarshal(data, &w); err != nil {
			c.logger.Warn("malformed quote dropped", "error", err)
			return
		}
		c.publishQuote(w.MarketID, w.Yes, w.No)

	case "event_status":
		var w statusWire
		if err := json.Unmarshal(data, &w); err != nil {
			c.logger.Warn("malformed status dropped", "error", err)
			return
		}
		if model.IsTerminalStatus(w.Status) {
			c.status.UpdateEventStatus(c.ctx, w.EventID, Source, w.Status)
		}

	default:
		c.logger.Debug("skipping message type", "type", env.Type)
	}
}

// publishQuote normalizes one two-sided quote and sends it to the bus
// and the cache.
func (c *Connector) publishQuote(marketID string, yes, no float64) {
	tick := model.NewQuoteTick(Source+":"+marketID, yes, no)

	res := c.bus.Publish(c.ctx, bus.TopicKalshiTicks, tick.Market, tick)
	if !res.Success {
		c.logger.Warn("tick publish failed", "market", tick.Market)
	}

	c.cache.Set(c.ctx, cache.PriceKey(tick.Market), tick, c.cfg.CacheTTL)
}

// rotateWSEndpoint advances to the next push endpoint.
func (c *Connector) rotateWSEndpoint() {
	c.wsIndex = (c.wsIndex + 1) % len(c.cfg.WSEndpoints)
}

// scheduleReconnect starts the fallback poll and arms the next
// reconnect attempt.
func (c *Connector) scheduleReconnect() {
	if c.ctx.Err() != nil {
		return
	}
	c.setState(StateReconnectScheduled)
	c.startFallback()

	delay := c.sched.Next()
	c.logger.Info("reconnect scheduled", "delay", delay)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-c.ctx.Done():
		case <-time.After(delay):
			c.connect()
		}
	}()
}

// startFallback begins REST polling while disconnected. Idempotent;
// no-op when no REST endpoints are configured.
func (c *Connector) startFallback() {
	c.fallbackMu.Lock()
	defer c.fallbackMu.Unlock()

	if c.fallbackCancel != nil || len(c.restClients) == 0 {
		return
	}

	fctx, cancel := context.WithCancel(c.ctx)
	c.fallbackCancel = cancel

	c.wg.Add(1)
	go c.fallbackLoop(fctx)

	c.logger.Info("fallback polling started", "interval", c.cfg.FallbackInterval)
}

// stopFallback cancels the fallback poll once the push connection is
// re-established.
func (c *Connector) stopFallback() {
	c.fallbackMu.Lock()
	defer c.fallbackMu.Unlock()

	if c.fallbackCancel != nil {
		c.fallbackCancel()
		c.fallbackCancel = nil
		c.logger.Info("fallback polling stopped")
	}
}

func (c *Connector) fallbackLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FallbackInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollFallback(ctx)
		}
	}
}

// pollFallback fetches current quotes over REST, publishing through
// the same normalization path as the push channel. Failures rotate
// the REST endpoint list.
func (c *Connector) pollFallback(ctx context.Context) {
	client := c.restClients[c.restIndex]

	var resp marketsResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		query := url.Values{"tickers": []string{strings.Join(c.cfg.Markets, ",")}}
		return client.Get(ctx, "/markets", query, &resp)
	})
	if err != nil {
		c.logger.Warn("fallback poll failed", "endpoint", client.BaseURL(), "error", err)
		c.restIndex = (c.restIndex + 1) % len(c.restClients)
		return
	}

	for _, m := range resp.Markets {
		c.publishQuote(m.ID, m.Yes, m.No)
		if model.IsTerminalStatus(m.Status) {
			c.status.UpdateEventStatus(ctx, m.ID, Source, m.Status)
		}
	}
}
