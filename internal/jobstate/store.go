// Package jobstate holds the single authoritative view of the current job.
package jobstate

import (
	"context"
	"sync"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/observability"
)

// View is an immutable snapshot of the store for readers.
type View struct {
	Job       *domain.JobStatus `json:"job,omitempty"`
	Uploading bool              `json:"uploading"`
	Error     string            `json:"error,omitempty"`
}

// JobID returns the current job id or "".
func (v View) JobID() string {
	if v.Job == nil {
		return ""
	}
	return v.Job.JobID
}

// Terminal reports whether the current job has reached completed or failed.
func (v View) Terminal() bool {
	return v.Job != nil && v.Job.Status.IsTerminal()
}

// Store owns the current JobStatus. Every update replaces the whole value.
// The submitter seeds it and the poller updates it; readers get snapshots.
type Store struct {
	mu        sync.Mutex
	job       *domain.JobStatus
	uploading bool
	errMsg    string

	subs    map[int]chan View
	nextSub int

	logger *observability.Logger
}

// New creates an empty store.
func New(logger *observability.Logger) *Store {
	return &Store{
		subs:   make(map[int]chan View),
		logger: observability.OrNop(logger).WithOperation("jobstate"),
	}
}

// Snapshot returns the current view.
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// BeginUpload discards the previous job and any visible error and raises the
// uploading flag.
func (s *Store) BeginUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.job = nil
	s.errMsg = ""
	s.uploading = true
	s.notifyLocked()
}

// EndUpload lowers the uploading flag.
func (s *Store) EndUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.uploading {
		return
	}
	s.uploading = false
	s.notifyLocked()
}

// SetError shows msg to the user. The current job, if any, is kept.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMsg = msg
	s.notifyLocked()
}

// Seed installs the queued placeholder for a freshly created job.
func (s *Store) Seed(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.QueuedStatus(jobID)
	s.job = &st
	s.errMsg = ""
	s.notifyLocked()
}

// Apply replaces the current status with st and reports whether it was applied.
//
// The response is dropped when ctx is already cancelled, when it belongs to a
// job other than the current one, or when the current job is already terminal.
// The ctx check happens under the lock so a cancelled poller can never write.
func (s *Store) Apply(ctx context.Context, st domain.JobStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.WithJob(st.JobID)

	if ctx.Err() != nil {
		log.Debug().Str("status", string(st.Status)).Msg("Dropping response from cancelled poller")
		return false
	}
	if s.job == nil || s.job.JobID != st.JobID {
		log.Debug().Str("current", s.currentIDLocked()).Msg("Dropping response for another job")
		return false
	}
	if s.job.Status.IsTerminal() {
		log.Debug().
			Str("terminal", string(s.job.Status)).
			Str("status", string(st.Status)).
			Msg("Dropping stale response after terminal state")
		return false
	}

	if st.Progress < s.job.Progress {
		log.Warn().
			Float64("previous", s.job.Progress).
			Float64("progress", st.Progress).
			Msg("Progress went backwards")
	}
	if st.Result != nil && st.Status != domain.StatusCompleted {
		log.Debug().Str("status", string(st.Status)).Msg("Partial result on non-completed status")
	}

	next := st
	s.job = &next
	s.notifyLocked()
	return true
}

// FailPolling surfaces a polling failure for jobID unless ctx is cancelled or
// another job has taken over.
func (s *Store) FailPolling(ctx context.Context, jobID, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil || s.job == nil || s.job.JobID != jobID {
		return false
	}
	s.errMsg = msg
	s.notifyLocked()
	return true
}

// Subscribe returns a channel of views and a cancel func. Slow readers only
// see the latest view; intermediate ones are dropped.
func (s *Store) Subscribe(buffer int) (<-chan View, func()) {
	if buffer < 1 {
		buffer = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan View, buffer)
	s.subs[id] = ch
	ch <- s.viewLocked()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) viewLocked() View {
	v := View{Uploading: s.uploading, Error: s.errMsg}
	if s.job != nil {
		job := *s.job
		v.Job = &job
	}
	return v
}

func (s *Store) currentIDLocked() string {
	if s.job == nil {
		return ""
	}
	return s.job.JobID
}

func (s *Store) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	v := s.viewLocked()
	for _, ch := range s.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		// Full: drop the oldest pending view.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
			s.logger.Warn().Msg("Subscriber channel full, dropping view")
		}
	}
}
