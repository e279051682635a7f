package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joshua-vybe/feedbridge/internal/bus"
	"github.com/joshua-vybe/feedbridge/internal/model"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	records map[string]model.EventStatusRecord
	failGet bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]model.EventStatusRecord)}
}

func (s *memStore) Get(ctx context.Context, eventID string) (*model.EventStatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("store unavailable")
	}
	rec, ok := s.records[eventID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memStore) Create(ctx context.Context, rec model.EventStatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.EventID] = rec
	return nil
}

func (s *memStore) Update(ctx context.Context, eventID, status, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[eventID]
	rec.Status = status
	rec.Source = source
	rec.UpdatedAt = time.Now()
	s.records[eventID] = rec
	return nil
}

// recordingBus captures published messages.
type recordingBus struct {
	mu        sync.Mutex
	published []string // topics
}

func (b *recordingBus) Publish(ctx context.Context, topic, key string, payload any) bus.PublishResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, topic)
	return bus.PublishResult{Success: true, LatencyMs: 0.1}
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func TestTracker_TerminalTransitionSequence(t *testing.T) {
	rb := &recordingBus{}
	tr := NewTracker(newMemStore(), rb, nil)
	ctx := context.Background()

	if got := tr.UpdateEventStatus(ctx, "EVT-1", "kalshi", "active"); got {
		t.Error("active create: want false")
	}
	if got := tr.UpdateEventStatus(ctx, "EVT-1", "kalshi", "cancelled"); !got {
		t.Error("terminal transition: want true")
	}
	// Same terminal status from a different source: unchanged, no-op.
	if got := tr.UpdateEventStatus(ctx, "EVT-1", "polymarket", "cancelled"); got {
		t.Error("repeated terminal: want false")
	}

	if rb.count() != 1 {
		t.Errorf("cancellations published = %d, want exactly 1", rb.count())
	}
}

func TestTracker_FirstObservationTerminal(t *testing.T) {
	rb := &recordingBus{}
	tr := NewTracker(newMemStore(), rb, nil)
	ctx := context.Background()

	if got := tr.UpdateEventStatus(ctx, "EVT-2", "polymarket", "disputed"); !got {
		t.Error("terminal create: want true")
	}
	if rb.count() != 1 {
		t.Errorf("cancellations published = %d, want 1", rb.count())
	}
}

func TestTracker_NonTerminalNeverPublishes(t *testing.T) {
	rb := &recordingBus{}
	tr := NewTracker(newMemStore(), rb, nil)
	ctx := context.Background()

	tr.UpdateEventStatus(ctx, "EVT-3", "kalshi", "active")
	tr.UpdateEventStatus(ctx, "EVT-3", "kalshi", "closed")
	tr.UpdateEventStatus(ctx, "EVT-3", "kalshi", "active")

	if rb.count() != 0 {
		t.Errorf("cancellations published = %d, want 0", rb.count())
	}
}

func TestTracker_AtMostOnceUnderConcurrency(t *testing.T) {
	rb := &recordingBus{}
	tr := NewTracker(newMemStore(), rb, nil)
	ctx := context.Background()

	var published int32
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		source := "kalshi"
		if i%2 == 1 {
			source = "polymarket"
		}
		go func(src string) {
			defer wg.Done()
			if tr.UpdateEventStatus(ctx, "EVT-4", src, "cancelled") {
				mu.Lock()
				published++
				mu.Unlock()
			}
		}(source)
	}
	wg.Wait()

	if published != 1 {
		t.Errorf("true returns = %d, want exactly 1", published)
	}
	if rb.count() != 1 {
		t.Errorf("cancellations published = %d, want exactly 1", rb.count())
	}
}

func TestTracker_StoreFailureReturnsFalse(t *testing.T) {
	st := newMemStore()
	st.failGet = true
	rb := &recordingBus{}
	tr := NewTracker(st, rb, nil)

	if got := tr.UpdateEventStatus(context.Background(), "EVT-5", "kalshi", "cancelled"); got {
		t.Error("store failure: want false")
	}
	if rb.count() != 0 {
		t.Errorf("cancellations published = %d, want 0", rb.count())
	}
}

func TestTracker_GetEventStatus(t *testing.T) {
	tr := NewTracker(newMemStore(), &recordingBus{}, nil)
	ctx := context.Background()

	tr.UpdateEventStatus(ctx, "EVT-6", "kalshi", "active")

	rec, err := tr.GetEventStatus(ctx, "EVT-6")
	if err != nil {
		t.Fatalf("GetEventStatus: %v", err)
	}
	if rec == nil || rec.Status != "active" || rec.Source != "kalshi" {
		t.Errorf("record = %+v, want active/kalshi", rec)
	}

	missing, err := tr.GetEventStatus(ctx, "EVT-404")
	if err != nil {
		t.Fatalf("GetEventStatus missing: %v", err)
	}
	if missing != nil {
		t.Errorf("record = %+v, want nil for unknown event", missing)
	}
}
