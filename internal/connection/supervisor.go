// internal/connection/supervisor.go
package connection

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Supervisor drives a Handler. It is a dumb, clock-driven stepper:
// one handler call per due Check, no retries of its own.
// Not safe for concurrent use; tick it from one goroutine.
type Supervisor struct {
	h   Handler
	log *zap.Logger
	now func() time.Time

	state     State
	lastCheck time.Time
	enteredAt time.Time
	checked   bool

	callbacks map[Event][]Callback
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Supervisor) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSupervisor starts in Init.
func NewSupervisor(h Handler, opts ...Option) *Supervisor {
	s := &Supervisor{
		h:         h,
		log:       zap.NewNop(),
		now:       time.Now,
		state:     Init,
		callbacks: make(map[Event][]Callback),
	}
	for _, o := range opts {
		o(s)
	}
	s.enteredAt = s.now()
	return s
}

// State returns the current state.
func (s *Supervisor) State() State { return s.state }

// Since returns how long the supervisor has been in the current state.
func (s *Supervisor) Since() time.Duration { return s.now().Sub(s.enteredAt) }

// On registers cb for ev.
func (s *Supervisor) On(ev Event, cb Callback) {
	s.callbacks[ev] = append(s.callbacks[ev], cb)
}

// Check runs the current state's handler if its interval has elapsed and
// returns the (possibly new) state.
func (s *Supervisor) Check() State {
	now := s.now()
	if s.checked && now.Sub(s.lastCheck) < CheckIntervals[s.state] {
		return s.state
	}
	s.lastCheck = now
	s.checked = true

	s.transition(s.step())
	return s.state
}

// Step runs the current state's handler unconditionally.
func (s *Supervisor) Step() State {
	s.lastCheck = s.now()
	s.checked = true
	s.transition(s.step())
	return s.state
}

func (s *Supervisor) step() State {
	switch s.state {
	case Init:
		return s.h.HandleInit()
	case Connecting:
		return s.h.HandleConnecting()
	case Connected:
		return s.h.HandleConnected()
	case Disconnecting:
		return s.h.HandleDisconnecting()
	case Disconnected:
		return s.h.HandleDisconnected()
	}
	// Closed / Error: re-entry only via Connect.
	return s.state
}

// Connect requests a (re)connection with keep-alive on.
// A bring-up already in progress is left alone.
func (s *Supervisor) Connect() {
	s.h.SetKeepAlive(true)
	if s.state == Init || s.state == Connecting {
		return
	}
	s.transition(Init)
}

// Disconnect requests a teardown with keep-alive off.
func (s *Supervisor) Disconnect() {
	s.h.SetKeepAlive(false)
	s.transition(Disconnecting)
}

func (s *Supervisor) transition(next State) {
	if next == s.state {
		return
	}
	prev := s.state
	s.state = next
	s.enteredAt = s.now()

	s.log.Debug("connection: state change",
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
	)

	var ev Event
	switch next {
	case Connected:
		ev = EventConnected
	case Disconnected:
		ev = EventDisconnected
	case Error:
		ev = EventError
	default:
		return
	}
	for _, cb := range s.callbacks[ev] {
		cb(prev, next)
	}
}

// Run ticks Check every interval until ctx is done.
// fn, if non-nil, runs after every tick on the same goroutine; it is where
// the application reads and writes payloads.
func (s *Supervisor) Run(ctx context.Context, interval time.Duration, fn func(State)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Check()
			if fn != nil {
				fn(st)
			}
		}
	}
}
