// Package resilience guards the outbound webhook call.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker opens after a run of consecutive failures and rejects calls until
// cooldown has elapsed. The next call after that is a probe: success closes
// the breaker, failure reopens it. Other calls are rejected while the probe
// is in flight. Rejected calls are not queued.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	probing     bool
	now         func() time.Time

	// OnStateChange, when set, is called with the lock released.
	OnStateChange func(from, to State)
}

// NewBreaker creates a breaker that opens after maxFailures consecutive failures.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// State reports the current position, moving from open to half-open when
// the cooldown has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	from, probe, ok := b.admit()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	if probe {
		b.probing = false
	}
	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	} else {
		b.failures = 0
		b.state = StateClosed
	}
	to := b.state
	b.mu.Unlock()

	if from != to && b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
	return err
}

// admit reports whether a call may run and whether it is the half-open probe.
func (b *Breaker) admit() (from State, probe, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return b.state, false, true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return b.state, false, false
		}
		b.state = StateHalfOpen
	}
	if b.probing {
		return b.state, false, false
	}
	b.probing = true
	return b.state, true, true
}
