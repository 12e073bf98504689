package poller

import (
	"context"
	"errors"
	"sync"
)

// Supervisor keeps at most one poller running. Following a new job id stops
// the previous poller and waits for it to exit before the new one starts.
type Supervisor struct {
	parent context.Context
	poller *Poller

	// ctl serializes Follow and Stop.
	ctl sync.Mutex

	mu     sync.Mutex
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewSupervisor creates a supervisor whose pollers are bound to parent.
func NewSupervisor(parent context.Context, p *Poller) *Supervisor {
	return &Supervisor{parent: parent, poller: p}
}

// Follow stops any active poller and starts one for jobID. The returned
// channel closes when the new poller exits. An empty jobID only stops.
func (s *Supervisor) Follow(jobID string) <-chan struct{} {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.stop()

	done := make(chan struct{})
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = nil
	s.done = done
	if jobID == "" {
		close(done)
		return done
	}

	ctx, cancel := context.WithCancel(s.parent)
	s.jobID = jobID
	s.cancel = cancel

	go func() {
		defer close(done)
		defer cancel()
		err := s.poller.Run(ctx, jobID)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.done == done && err != nil && !errors.Is(err, context.Canceled) {
			s.err = err
		}
	}()

	return done
}

// Stop cancels the active poller and waits until it has exited. After Stop
// returns the old poller makes no further store writes.
func (s *Supervisor) Stop() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	s.stop()
}

// Active returns the job id being followed, or "" when idle.
func (s *Supervisor) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		return ""
	}
	select {
	case <-s.done:
		return ""
	default:
		return s.jobID
	}
}

// Done returns a channel closed when the current poller exits. It is already
// closed when nothing was ever followed.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.done
}

// Err is the error that ended the last poller, if it ended on a fetch failure.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// stop must be called with ctl held.
func (s *Supervisor) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.jobID = ""
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
