package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/joshua-vybe/feedbridge/internal/model"
)

func newTestCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedis(client, nil), mr
}

func TestRedis_Set(t *testing.T) {
	c, mr := newTestCache(t)

	tick := model.Tick{Market: "BTC/USD", Price: 64000.25, Timestamp: 1700000000000}
	c.Set(context.Background(), PriceKey("BTC/USD"), tick, time.Second)

	raw, err := mr.Get("price:latest:BTC/USD")
	if err != nil {
		t.Fatalf("miniredis get: %v", err)
	}

	var got model.Tick
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal cached tick: %v", err)
	}
	if got.Price != 64000.25 {
		t.Errorf("cached price = %v, want 64000.25", got.Price)
	}

	if ttl := mr.TTL("price:latest:BTC/USD"); ttl != time.Second {
		t.Errorf("ttl = %v, want 1s", ttl)
	}
}

func TestRedis_SetSwallowsFailures(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close() // simulate redis being down

	// Must not panic or return anything; failure is best-effort.
	c.Set(context.Background(), PriceKey("ETH/USD"), model.Tick{Market: "ETH/USD"}, time.Second)
}
