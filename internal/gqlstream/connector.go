package gqlstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joshua-vybe/feedbridge/internal/backoff"
	"github.com/joshua-vybe/feedbridge/internal/breaker"
	"github.com/joshua-vybe/feedbridge/internal/bus"
	"github.com/joshua-vybe/feedbridge/internal/cache"
	"github.com/joshua-vybe/feedbridge/internal/metrics"
	"github.com/joshua-vybe/feedbridge/internal/model"
	"github.com/joshua-vybe/feedbridge/internal/rest"
	"github.com/joshua-vybe/feedbridge/internal/stream"
)

// Source is the connector's source label.
const Source = "polymarket"

// StatusSink receives observed event status values. Satisfied by
// status.Tracker.
type StatusSink interface {
	UpdateEventStatus(ctx context.Context, eventID, source, status string) bool
}

// Config holds GraphQL stream connector configuration.
type Config struct {
	WSEndpoints []string // rotated on connect failure
	RESTURL     string   // status safety-poll endpoint
	Markets     []string

	ConnectTimeout     time.Duration // default 10s
	AckTimeout         time.Duration // default 5s
	PingInterval       time.Duration // default 10s
	StatusPollInterval time.Duration // default 10s
	CacheTTL           time.Duration // default 5s
	Reconnect          backoff.Policy
}

func (cfg *Config) applyDefaults() {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = 5 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.StatusPollInterval == 0 {
		cfg.StatusPollInterval = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Second
	}
	if cfg.Reconnect == (backoff.Policy{}) {
		cfg.Reconnect = backoff.DefaultPolicy()
	}
}

// Connector maintains the subscription connection and a continuous
// REST status poll. Subscription start is gated on the server's
// connection_ack.
type Connector struct {
	cfg        Config
	breaker    *breaker.Breaker
	bus        bus.Publisher
	cache      cache.Setter
	status     StatusSink
	metrics    *metrics.Metrics
	logger     *slog.Logger
	restClient *rest.Client

	wsIndex int // guarded by connect flow (single goroutine)
	subID   string

	sched *backoff.Schedule
	state atomic.Int32
	acked atomic.Bool

	clientMu sync.Mutex
	client   *stream.Client

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates the GraphQL stream connector.
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

	var restClient *rest.Client
	if cfg.RESTURL != "" {
		restClient = rest.New(cfg.RESTURL, rest.WithLogger(logger))
	}

	return &Connector{
		cfg:        cfg,
		breaker:    br,
		bus:        publisher,
		cache:      cacheSetter,
		status:     sink,
		metrics:    m,
		logger:     logger.With("source", Source),
		restClient: restClient,
		sched:      backoff.NewSchedule(cfg.Reconnect),
	}
}

// Start begins connecting and starts the status safety poll.
func (c *Connector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.connect()
	}()

	if c.restClient != nil {
		c.wg.Add(1)
		go c.statusPollLoop()
	}

	c.metrics.SetConnectorUp(Source, true)
	c.logger.Info("gql stream connector started",
		"endpoints", len(c.cfg.WSEndpoints),
		"markets", len(c.cfg.Markets),
	)
	return nil
}

// Stop cancels all timers and closes any open socket. Safe to call
// more than once.
func (c *Connector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}

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
		c.logger.Info("gql stream connector stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current connection state.
func (c *Connector) State() stream.ConnState {
	return stream.ConnState(c.state.Load())
}

// Acked reports whether the current connection's handshake completed.
func (c *Connector) Acked() bool {
	return c.acked.Load()
}

func (c *Connector) setState(s stream.ConnState) {
	c.state.Store(int32(s))
}

// connect dials the current endpoint and sends connection_init, all
// through the breaker. The subscription itself is not started here;
// that waits for the connection_ack in the read loop.
func (c *Connector) connect() {
	if c.ctx.Err() != nil {
		return
	}
	c.setState(stream.StateConnecting)
	c.acked.Store(false)

	endpoint := c.cfg.WSEndpoints[c.wsIndex]
	client := stream.NewClient(stream.ClientConfig{
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
		init, err := json.Marshal(frame{Type: frameConnectionInit, Payload: json.RawMessage(`{}`)})
		if err != nil {
			return err
		}
		if err := client.Send(init); err != nil {
			client.Close()
			return err
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("connect failed", "endpoint", endpoint, "error", err)
		c.setState(stream.StateDisconnected)
		c.rotateWSEndpoint()
		c.scheduleReconnect()
		return
	}

	c.clientMu.Lock()
	c.client = client
	c.clientMu.Unlock()

	c.setState(stream.StateConnected)
	c.sched.Reset()

	c.logger.Info("connected, awaiting ack", "endpoint", endpoint)

	c.wg.Add(1)
	go c.readLoop(client)
}

// readLoop consumes frames until the connection errors, the ack
// deadline expires, or the connector stops. A post-connect close
// reconnects without rotating.
func (c *Connector) readLoop(client *stream.Client) {
	defer c.wg.Done()

	ackDeadline := time.NewTimer(c.cfg.AckTimeout)
	defer ackDeadline.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case <-ackDeadline.C:
			if c.acked.Load() {
				continue
			}
			c.logger.Warn("connection_ack not received, closing",
				"timeout", c.cfg.AckTimeout)
			client.Close()
			c.setState(stream.StateDisconnected)
			c.scheduleReconnect()
			return

		case err := <-client.Errors():
			c.logger.Warn("connection lost", "error", err)
			client.Close()
			c.acked.Store(false)
			c.setState(stream.StateDisconnected)
			c.scheduleReconnect()
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			c.handleFrame(client, msg.Data)
		}
	}
}

// handleFrame parses and dispatches one inbound frame. Malformed
// frames are logged and dropped; the connection stays open.
func (c *Connector) handleFrame(client *stream.Client, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("malformed frame dropped", "error", err)
		return
	}

	switch f.Type {
	case frameConnectionAck:
		c.acked.Store(true)
		if err := c.sendStart(client); err != nil {
			c.logger.Warn("subscription start failed", "error", err)
		}

	case frameData:
		var p dataPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.logger.Warn("malformed data frame dropped", "error", err)
			return
		}
		c.handleUpdate(p.Data.MarketUpdate)

	case frameError:
		c.logger.Warn("server error frame", "payload", string(f.Payload))

	case frameComplete:
		c.logger.Info("subscription completed by server", "id", f.ID)

	default:
		c.logger.Debug("skipping frame type", "type", f.Type)
	}
}

// sendStart sends the subscription-start frame. Before the ack has
// arrived this is a silent no-op.
func (c *Connector) sendStart(client *stream.Client) error {
	if !c.acked.Load() {
		c.logger.Debug("start suppressed, handshake not acked")
		return nil
	}

	c.subID = uuid.NewString()
	payload, err := json.Marshal(startPayload{
		Query:     marketUpdatesQuery,
		Variables: map[string]any{"markets": c.cfg.Markets},
	})
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame{ID: c.subID, Type: frameStart, Payload: payload})
	if err != nil {
		return err
	}

	if err := client.Send(data); err != nil {
		return err
	}
	c.logger.Info("subscription started", "id", c.subID, "markets", len(c.cfg.Markets))
	return nil
}

// handleUpdate normalizes one push update, publishing the quote and
// forwarding terminal status transitions.
func (c *Connector) handleUpdate(u marketUpdate) {
	if u.Market == "" {
		return
	}

	tick := model.NewQuoteTick(Source+":"+u.Market, u.YesPrice, u.NoPrice)

	res := c.bus.Publish(c.ctx, bus.TopicPolymarketTicks, tick.Market, tick)
	if !res.Success {
		c.logger.Warn("tick publish failed", "market", tick.Market)
	}
	c.cache.Set(c.ctx, cache.PriceKey(tick.Market), tick, c.cfg.CacheTTL)

	if model.IsTerminalStatus(u.Status) {
		c.status.UpdateEventStatus(c.ctx, u.Market, Source, u.Status)
	}
}

// rotateWSEndpoint advances to the next push endpoint.
func (c *Connector) rotateWSEndpoint() {
	c.wsIndex = (c.wsIndex + 1) % len(c.cfg.WSEndpoints)
}

// scheduleReconnect arms the next reconnect attempt. There is no tick
// fallback for this feed; the status poll already runs continuously.
func (c *Connector) scheduleReconnect() {
	if c.ctx.Err() != nil {
		return
	}
	c.setState(stream.StateReconnectScheduled)

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

// statusPollLoop polls market statuses over REST for the connector's
// lifetime, regardless of connection state. It exists to catch
// terminal transitions the push channel may have missed.
func (c *Connector) statusPollLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.StatusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.pollStatuses()
		}
	}
}

func (c *Connector) pollStatuses() {
	var resp statusPollResponse
	err := c.breaker.Execute(c.ctx, func(ctx context.Context) error {
		query := url.Values{"ids": []string{strings.Join(c.cfg.Markets, ",")}}
		return c.restClient.Get(ctx, "/markets", query, &resp)
	})
	if err != nil {
		c.logger.Warn("status poll failed", "error", err)
		return
	}

	for _, m := range resp.Markets {
		if model.IsTerminalStatus(m.Status) {
			c.status.UpdateEventStatus(c.ctx, m.ID, Source, m.Status)
		}
	}
}
