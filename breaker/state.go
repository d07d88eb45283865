package breaker

import (
	"sync"
	"time"
)

// State circuit state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// transition one state change, zero value means none
type transition struct {
	changed  bool
	from, to State
	reason   string
}

// stateManager closed/open/half-open machine
type stateManager struct {
	mu               sync.Mutex
	state            State
	lastStateChange  time.Time
	halfOpenAttempts int
	halfOpenSuccess  int
	now              func() time.Time
}

func newStateManager(now func() time.Time) *stateManager {
	return &stateManager{state: StateClosed, lastStateChange: now(), now: now}
}

func (sm *stateManager) State() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// canAttempt admits a call; an expired open circuit turns half-open here
func (sm *stateManager) canAttempt(cfg Config) (bool, transition) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	switch sm.state {
	case StateClosed:
		return true, transition{}
	case StateOpen:
		if sm.now().Sub(sm.lastStateChange) < cfg.Timeout {
			return false, transition{}
		}
		t := sm.transitionTo(StateHalfOpen, "open timeout expired")
		sm.halfOpenAttempts = 1
		return true, t
	case StateHalfOpen:
		if sm.halfOpenAttempts < cfg.HalfOpenRequests {
			sm.halfOpenAttempts++
			return true, transition{}
		}
		return false, transition{}
	default:
		return false, transition{}
	}
}

func (sm *stateManager) recordSuccess(cfg Config) transition {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.state != StateHalfOpen {
		return transition{}
	}
	sm.halfOpenSuccess++
	if sm.halfOpenSuccess >= cfg.HalfOpenRequests {
		return sm.transitionTo(StateClosed, "probes succeeded")
	}
	return transition{}
}

// recordFailure a half-open failure reopens at once; closed opens when shouldOpen
func (sm *stateManager) recordFailure(shouldOpen bool) transition {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	switch {
	case sm.state == StateHalfOpen:
		return sm.transitionTo(StateOpen, "probe failed")
	case sm.state == StateClosed && shouldOpen:
		return sm.transitionTo(StateOpen, "failure threshold exceeded")
	default:
		return transition{}
	}
}

func (sm *stateManager) reset() transition {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state == StateClosed {
		return transition{}
	}
	return sm.transitionTo(StateClosed, "manual reset")
}

// transitionTo caller holds mu
func (sm *stateManager) transitionTo(to State, reason string) transition {
	t := transition{changed: true, from: sm.state, to: to, reason: reason}
	sm.state = to
	sm.lastStateChange = sm.now()
	sm.halfOpenAttempts = 0
	sm.halfOpenSuccess = 0
	return t
}
