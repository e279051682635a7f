package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshua-vybe/feedbridge/internal/bus"
	"github.com/joshua-vybe/feedbridge/internal/model"
)

// CancellationEvent is published on the shared cancellation topic when
// an event first transitions to a terminal status.
type CancellationEvent struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Source    string `json:"source"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"` // ms since epoch
}

// Tracker gates the cancellation publish on the durable status store.
//
// Updates are serialized with a tracker-wide mutex: different sources
// can observe the same event concurrently, and the store access is a
// non-atomic read-then-write. A single tracker instance is shared by
// all connectors in the process.
type Tracker struct {
	store  Store
	bus    bus.Publisher
	logger *slog.Logger

	mu sync.Mutex
}

// NewTracker creates a tracker on the given store and bus.
func NewTracker(store Store, publisher bus.Publisher, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		bus:    publisher,
		logger: logger,
	}
}

// UpdateEventStatus records an observed status and returns whether a
// cancellation was just published. Once an event's status is terminal,
// repeated observations of the same terminal status are no-ops, so the
// cancellation is published at most once per event. Store failures are
// logged and reported as false; no retry is scheduled.
func (t *Tracker) UpdateEventStatus(ctx context.Context, eventID, source, status string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.store.Get(ctx, eventID)
	if err != nil {
		t.logger.Error("failed to read event status", "event_id", eventID, "error", err)
		return false
	}

	if existing == nil {
		rec := model.EventStatusRecord{
			EventID:   eventID,
			Source:    source,
			Status:    status,
			UpdatedAt: time.Now(),
		}
		if err := t.store.Create(ctx, rec); err != nil {
			t.logger.Error("failed to create event status", "event_id", eventID, "error", err)
			return false
		}
		if model.IsTerminalStatus(status) {
			t.publishCancellation(ctx, eventID, source, status)
			return true
		}
		return false
	}

	// Already observed; covers the repeated-terminal case.
	if existing.Status == status {
		return false
	}

	if err := t.store.Update(ctx, eventID, status, source); err != nil {
		t.logger.Error("failed to update event status", "event_id", eventID, "error", err)
		return false
	}

	if model.IsTerminalStatus(status) {
		t.publishCancellation(ctx, eventID, source, status)
		return true
	}
	return false
}

// GetEventStatus is a pure read accessor, exposed for observability
// and testing.
func (t *Tracker) GetEventStatus(ctx context.Context, eventID string) (*model.EventStatusRecord, error) {
	return t.store.Get(ctx, eventID)
}

func (t *Tracker) publishCancellation(ctx context.Context, eventID, source, status string) {
	evt := CancellationEvent{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Source:    source,
		Status:    status,
		Timestamp: time.Now().UnixMilli(),
	}

	res := t.bus.Publish(ctx, bus.TopicCancellations, eventID, evt)
	if !res.Success {
		// The record is already terminal, so this cancellation is lost
		// rather than retried.
		t.logger.Error("failed to publish cancellation",
			"event_id", eventID,
			"source", source,
			"status", status,
		)
		return
	}

	t.logger.Info("published cancellation",
		"event_id", eventID,
		"source", source,
		"status", status,
		"latency_ms", res.LatencyMs,
	)
}
