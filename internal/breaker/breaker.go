package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute when the breaker is Open and
// the reset timeout has not elapsed. The wrapped operation is not
// invoked.
var ErrCircuitOpen = errors.New("circuit open")

// State is the admission state of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker guards a fallible operation for one source. Each connector
// owns its own instance; state is mutated only by Execute and Reset.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	logger       *slog.Logger
	onChange     func(State)

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	trialActive bool

	now func() time.Time // overridden in tests
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithStateFunc registers a callback invoked on every state
// transition, e.g. to update a metrics gauge.
func WithStateFunc(fn func(State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// New creates a breaker that opens after threshold consecutive
// failures and admits a trial call resetTimeout after the last one.
func New(name string, threshold int, resetTimeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("breaker", name)
	return b
}

// Execute runs op under the breaker's admission control. When the
// breaker rejects the call, ErrCircuitOpen is returned and op is not
// invoked; otherwise op's error is returned as-is.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	if err := op(ctx); err != nil {
		b.onFailure()
		return err
	}

	b.onSuccess()
	return nil
}

// admit decides whether a call may proceed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.trialActive = true
		return nil

	case StateHalfOpen:
		// One trial call at a time.
		if b.trialActive {
			return ErrCircuitOpen
		}
		b.trialActive = true
		return nil

	default:
		return nil
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.trialActive = false
	if b.state != StateClosed {
		b.logger.Info("circuit closed after successful trial")
		b.setState(StateClosed)
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	b.trialActive = false

	if b.state == StateHalfOpen {
		b.logger.Warn("trial call failed, reopening circuit")
		b.setState(StateOpen)
		return
	}

	if b.state == StateClosed && b.failures >= b.threshold {
		b.logger.Warn("failure threshold reached, opening circuit",
			"failures", b.failures,
			"threshold", b.threshold,
		)
		b.setState(StateOpen)
	}
}

// setState transitions state and fires the change callback.
// Caller must hold b.mu.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	if b.onChange != nil {
		b.onChange(s)
	}
}

// State returns the current admission state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset manually returns the breaker to Closed with a clean failure
// count. Exposed for operational recovery.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.trialActive = false
	b.setState(StateClosed)
}
