package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joshua-vybe/feedbridge/internal/backoff"
	"github.com/joshua-vybe/feedbridge/internal/breaker"
	"github.com/joshua-vybe/feedbridge/internal/bus"
	"github.com/joshua-vybe/feedbridge/internal/model"
)

type publishedTick struct {
	topic string
	tick  model.Tick
}

type recordingBus struct {
	mu    sync.Mutex
	ticks []publishedTick
}

func (b *recordingBus) Publish(ctx context.Context, topic, key string, payload any) bus.PublishResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tick, ok := payload.(model.Tick); ok {
		b.ticks = append(b.ticks, publishedTick{topic: topic, tick: tick})
	}
	return bus.PublishResult{Success: true}
}

func (b *recordingBus) published() []publishedTick {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedTick(nil), b.ticks...)
}

type nopCache struct{}

func (nopCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {}

type statusCall struct {
	eventID string
	source  string
	status  string
}

type recordingSink struct {
	mu    sync.Mutex
	calls []statusCall
}

func (s *recordingSink) UpdateEventStatus(ctx context.Context, eventID, source, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, statusCall{eventID, source, status})
	return true
}

func (s *recordingSink) recorded() []statusCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]statusCall(nil), s.calls...)
}

func testConfig(wsEndpoint string) Config {
	return Config{
		WSEndpoints:    []string{wsEndpoint},
		Markets:        []string{"PRES-2028", "FED-DEC"},
		ConnectTimeout: 2 * time.Second,
		PingInterval:   10 * time.Second,
		Reconnect:      backoff.Policy{Base: 50 * time.Millisecond, MaxAttempts: 5, Extended: time.Second},
	}
}

func newConnector(cfg Config, rb *recordingBus, sink *recordingSink) *Connector {
	return New(cfg, rb, nopCache{}, sink, breaker.New("test", 10, time.Minute), nil, nil)
}

func TestConnector_SubscribesAndPublishesTicks(t *testing.T) {
	subscribed := make(chan subscribeCmd, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd subscribeCmd
		json.Unmarshal(msg, &cmd)
		subscribed <- cmd

		snapshot := map[string]any{
			"type": "orderbook_snapshot", "market_id": "PRES-2028",
			"yes": 0.62, "no": 0.39,
		}
		data, _ := json.Marshal(snapshot)
		conn.WriteMessage(websocket.TextMessage, data)

		// Keep the connection open.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	rb := &recordingBus{}
	cfg := testConfig(wsURL(server))
	cfg.AuthToken = "tok-123"
	c := newConnector(cfg, rb, &recordingSink{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	select {
	case cmd := <-subscribed:
		if cmd.Type != "subscribe" {
			t.Errorf("command type = %q, want subscribe", cmd.Type)
		}
		if cmd.Token != "tok-123" {
			t.Errorf("token = %q, want tok-123", cmd.Token)
		}
		if len(cmd.Markets) != 2 {
			t.Errorf("markets = %v, want 2 entries", cmd.Markets)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe command never sent")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rb.published()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	ticks := rb.published()
	if len(ticks) == 0 {
		t.Fatal("no tick published")
	}
	got := ticks[0]
	if got.topic != bus.TopicKalshiTicks {
		t.Errorf("topic = %q, want %q", got.topic, bus.TopicKalshiTicks)
	}
	if got.tick.Market != "kalshi:PRES-2028" {
		t.Errorf("market = %q, want kalshi:PRES-2028", got.tick.Market)
	}
	if got.tick.Yes != 0.62 || got.tick.No != 0.39 {
		t.Errorf("quote = (%v, %v), want (0.62, 0.39)", got.tick.Yes, got.tick.No)
	}
}

func TestConnector_ForwardsTerminalStatus(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // subscribe

		for _, status := range []string{"active", "cancelled"} {
			frame := map[string]any{
				"type": "event_status", "event_id": "EVT-9", "status": status,
			}
			data, _ := json.Marshal(frame)
			conn.WriteMessage(websocket.TextMessage, data)
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sink := &recordingSink{}
	c := newConnector(testConfig(wsURL(server)), &recordingBus{}, sink)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.recorded()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	calls := sink.recorded()
	if len(calls) != 1 {
		t.Fatalf("sink calls = %d, want 1 (non-terminal statuses are not forwarded)", len(calls))
	}
	want := statusCall{eventID: "EVT-9", source: "kalshi", status: "cancelled"}
	if calls[0] != want {
		t.Errorf("call = %+v, want %+v", calls[0], want)
	}
}

func TestConnector_MalformedMessagesDropped(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // subscribe

		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))

		snapshot := map[string]any{
			"type": "orderbook_delta", "market_id": "FED-DEC", "yes": 0.5, "no": 0.5,
		}
		data, _ := json.Marshal(snapshot)
		conn.WriteMessage(websocket.TextMessage, data)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	rb := &recordingBus{}
	c := newConnector(testConfig(wsURL(server)), rb, &recordingSink{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rb.published()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The malformed frame is dropped and the valid one behind it still
	// flows: the connection stayed open.
	ticks := rb.published()
	if len(ticks) != 1 {
		t.Fatalf("published = %d, want 1", len(ticks))
	}
	if ticks[0].tick.Market != "kalshi:FED-DEC" {
		t.Errorf("market = %q, want kalshi:FED-DEC", ticks[0].tick.Market)
	}
}

func TestConnector_FallbackPollsWhileDisconnected(t *testing.T) {
	restServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(marketsResponse{
			Markets: []marketQuote{
				{ID: "PRES-2028", Yes: 0.61, No: 0.40},
				{ID: "FED-DEC", Yes: 0.25, No: 0.76, Status: "cancelled"},
			},
		})
	}))
	defer restServer.Close()

	rb := &recordingBus{}
	sink := &recordingSink{}
	cfg := Config{
		WSEndpoints:      []string{"ws://127.0.0.1:1"}, // refuses connections
		RESTEndpoints:    []string{restServer.URL},
		Markets:          []string{"PRES-2028", "FED-DEC"},
		ConnectTimeout:   200 * time.Millisecond,
		FallbackInterval: 50 * time.Millisecond,
		Reconnect:        backoff.Policy{Base: 10 * time.Second, MaxAttempts: 5, Extended: time.Minute},
	}
	c := newConnector(cfg, rb, sink)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(rb.published()) >= 2 && len(sink.recorded()) >= 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if len(rb.published()) < 2 {
		t.Fatalf("fallback published %d ticks, want >= 2", len(rb.published()))
	}
	if c.State() != StateReconnectScheduled {
		t.Errorf("state = %v, want reconnect scheduled", c.State())
	}

	calls := sink.recorded()
	if len(calls) == 0 {
		t.Fatal("terminal status from fallback not forwarded")
	}
	if calls[0].eventID != "FED-DEC" || calls[0].status != "cancelled" {
		t.Errorf("call = %+v, want FED-DEC cancelled", calls[0])
	}
}

func TestConnector_StopIdempotent(t *testing.T) {
	cfg := Config{
		WSEndpoints:    []string{"ws://127.0.0.1:1"},
		Markets:        []string{"PRES-2028"},
		ConnectTimeout: 100 * time.Millisecond,
		Reconnect:      backoff.Policy{Base: 10 * time.Second, MaxAttempts: 5, Extended: time.Minute},
	}
	c := newConnector(cfg, &recordingBus{}, &recordingSink{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Stop(stopCtx); err != nil {
		t.Errorf("first Stop: %v", err)
	}
	if err := c.Stop(stopCtx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
