package controller

import (
	"sort"
	"time"

	"bgservice/internal/logger"
)

// State is the externally visible service state.
type State int

const (
	StateNotRunning State = iota
	StateRunning
	StateRunningForeground
)

func (s State) String() string {
	switch s {
	case StateNotRunning:
		return "not-running"
	case StateRunning:
		return "running"
	case StateRunningForeground:
		return "running-foreground"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Trigger names the event that caused a transition.
type Trigger string

const (
	TriggerStartCommand    Trigger = "start-command"
	TriggerDestroy         Trigger = "destroy"
	TriggerEnterForeground Trigger = "enter-foreground"
	TriggerLeaveForeground Trigger = "leave-foreground"
)

// Snapshot is a consistent view of the controller flags, read under a
// single lock hold.
type Snapshot struct {
	State       State
	Running     bool
	Foreground  bool
	HasInstance bool
}

// Transition is one observed state change.
type Transition struct {
	Service string
	From    State
	To      State
	Trigger Trigger
	At      time.Time
}

// Subscribe registers fn to receive every later transition. Transitions are
// delivered in order, outside the controller lock, possibly on the goroutine
// of whichever caller produced a concurrent transition. The returned
// function unregisters fn.
func (c *ServiceController) Subscribe(fn func(Transition)) (cancel func()) {
	c.obsMu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *ServiceController) snapshotObservers() []func(Transition) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fns := make([]func(Transition), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.observers[id])
	}
	return fns
}

// deliver drains pending transitions to observers. Only one goroutine
// drains at a time; the others leave their transitions queued for it, which
// keeps delivery ordered and lets observers call back into the controller.
func (c *ServiceController) deliver() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true

	for len(c.pending) > 0 {
		tr := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()

		for _, fn := range c.snapshotObservers() {
			c.notify(fn, tr)
		}

		c.mu.Lock()
	}

	c.delivering = false
	c.mu.Unlock()
}

// notify calls one observer. A panicking observer is logged and skipped so
// the remaining observers and later transitions are still delivered.
func (c *ServiceController) notify(fn func(Transition), tr Transition) {
	defer func() {
		if r := recover(); r != nil {
			log := logger.WithComponent("controller")
			log.Error().
				Str("service", tr.Service).
				Str("trigger", string(tr.Trigger)).
				Interface("panic", r).
				Msg("Transition observer panicked")
		}
	}()
	fn(tr)
}
