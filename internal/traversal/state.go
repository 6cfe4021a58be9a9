package traversal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spigell/listing-scout/internal/metrics"
)

// ErrStopped is returned from a checkpoint once the run was stopped.
var ErrStopped = errors.New("traversal stopped")

// DefaultPollInterval bounds how long a paused or sleeping loop takes to
// notice a new signal.
const DefaultPollInterval = 500 * time.Millisecond

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

var allStates = []string{string(StateIdle), string(StateRunning), string(StatePaused), string(StateStopped)}

type Signal string

const (
	SignalStart  Signal = "start"
	SignalToggle Signal = "toggle"
	SignalPause  Signal = "pause"
	SignalResume Signal = "resume"
	SignalStop   Signal = "stop"
)

// Transition returns the state reached from s on sig. Stopped is terminal and
// an Idle run can only be started or stopped.
func Transition(s State, sig Signal) State {
	if s == StateStopped || sig == SignalStop {
		return StateStopped
	}

	switch s {
	case StateIdle:
		if sig == SignalStart {
			return StateRunning
		}
	case StateRunning:
		if sig == SignalToggle || sig == SignalPause {
			return StatePaused
		}
	case StatePaused:
		if sig == SignalToggle || sig == SignalResume || sig == SignalStart {
			return StateRunning
		}
	}
	return s
}

// Control owns the run state. Signal sources only enqueue; the loop applies
// the queue at its checkpoints so a handler never races the loop's read.
type Control struct {
	poll time.Duration

	mu      sync.Mutex
	state   State
	pending []Signal
	wake    chan struct{}
}

func NewControl(poll time.Duration) *Control {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	metrics.SetState(string(StateIdle), allStates)
	return &Control{poll: poll, state: StateIdle, wake: make(chan struct{}, 1)}
}

// Send enqueues sig. It never blocks.
func (c *Control) Send(sig Signal) {
	c.mu.Lock()
	c.pending = append(c.pending, sig)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// State returns the last applied state.
func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of signals not yet applied by the loop.
func (c *Control) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Control) apply() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return c.state
	}

	prev := c.state
	for _, sig := range c.pending {
		c.state = Transition(c.state, sig)
	}
	c.pending = c.pending[:0]

	if c.state != prev {
		metrics.SetState(string(c.state), allStates)
	}
	return c.state
}

// Checkpoint applies pending signals and blocks while paused. It returns
// ErrStopped once stopped or ctx.Err() when the context ends.
func (c *Control) Checkpoint(ctx context.Context) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch c.apply() {
		case StateStopped:
			return ErrStopped
		case StateRunning:
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		case <-ticker.C:
		}
	}
}

// Sleep waits d in chunks no longer than the poll interval and checkpoints
// between them. Time spent paused does not count towards d.
func (c *Control) Sleep(ctx context.Context, d time.Duration) error {
	for d > 0 {
		if err := c.Checkpoint(ctx); err != nil {
			return err
		}

		chunk := min(d, c.poll)
		timer := time.NewTimer(chunk)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-c.wake:
			timer.Stop()
			// the signal is applied by the next checkpoint; the chunk is
			// counted as spent
		case <-timer.C:
		}
		d -= chunk
	}
	return c.Checkpoint(ctx)
}
