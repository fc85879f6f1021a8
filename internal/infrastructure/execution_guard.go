package infrastructure

import (
	"sync"
	"time"
)

// subscriberState tracks in-flight automation per subscriber.
type subscriberState struct {
	running     bool
	lastTrigger time.Time
}

// ExecutionGuard prevents a subscriber from running overlapping flow
// executions. Rapid repeat triggers within the debounce window are
// also dropped, so button mashing starts one flow, not five.
type ExecutionGuard struct {
	states   map[string]*subscriberState
	debounce time.Duration
	mu       sync.Mutex
}

func NewExecutionGuard(debounce time.Duration) *ExecutionGuard {
	return &ExecutionGuard{
		states:   make(map[string]*subscriberState),
		debounce: debounce,
	}
}

// TryBegin reports whether a new execution may start for the
// subscriber, and claims the slot if so. Callers must pair a true
// return with End.
func (g *ExecutionGuard) TryBegin(subscriberID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.states[subscriberID]
	if !ok {
		state = &subscriberState{}
		g.states[subscriberID] = state
	}

	if state.running {
		return false
	}
	if time.Since(state.lastTrigger) < g.debounce {
		return false
	}

	state.running = true
	state.lastTrigger = time.Now()
	return true
}

// End releases the subscriber's execution slot.
func (g *ExecutionGuard) End(subscriberID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if state, ok := g.states[subscriberID]; ok {
		state.running = false
	}
}
