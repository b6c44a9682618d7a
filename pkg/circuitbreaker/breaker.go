// Package circuitbreaker stops calling a dependency after it has failed
// repeatedly, and lets a single trial call through once a cool-down ends.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	Name string
	// MaxFailures consecutive failures open the breaker. Defaults to 3.
	MaxFailures int
	// Timeout is how long the breaker stays open. Defaults to one minute.
	Timeout       time.Duration
	OnStateChange func(name string, from, to State)
}

type CircuitBreaker struct {
	name          string
	maxFailures   int
	timeout       time.Duration
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

func New(st Settings) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:          st.Name,
		maxFailures:   st.MaxFailures,
		timeout:       st.Timeout,
		onStateChange: st.OnStateChange,
		now:           time.Now,
	}
	if cb.name == "" {
		cb.name = "CircuitBreaker"
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = 3
	}
	if cb.timeout <= 0 {
		cb.timeout = time.Minute
	}
	return cb
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Execute runs fn unless the breaker is open, in which case it returns
// ErrOpen without calling fn. While half-open only one call runs at a time;
// concurrent callers get ErrOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	state := cb.currentState()
	if state == StateOpen || (state == StateHalfOpen && cb.trial) {
		cb.mu.Unlock()
		return ErrOpen
	}
	if state == StateHalfOpen {
		cb.trial = true
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trial = false
	if err == nil {
		cb.failures = 0
		cb.setState(StateClosed)
		return nil
	}
	cb.failures++
	if state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.openedAt = cb.now()
		cb.setState(StateOpen)
	}
	return err
}

func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.timeout {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}
	prev := cb.state
	cb.state = state
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, state)
	}
}
