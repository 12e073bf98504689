// Package session is the controller behind one consuming view. It owns the
// store and wires the submitter, the poller supervisor and the optional
// ledger and broadcaster around it. Close is view teardown.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/broadcast"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/history"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/observability"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/poller"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/render"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/submit"
)

// Backend is the slice of the API client a session needs.
type Backend interface {
	submit.Uploader
	poller.StatusFetcher
	DownloadURL(jobID string) string
}

// Options configures a Session. Zero values are usable.
type Options struct {
	Interval  time.Duration
	Ledger    *history.Ledger
	Publisher broadcast.Publisher
	Logger    *observability.Logger
}

// Session coordinates one job lifecycle at a time.
type Session struct {
	backend    Backend
	store      *jobstate.Store
	submitter  *submit.Submitter
	supervisor *poller.Supervisor
	ledger     *history.Ledger
	logger     *observability.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	recorded map[string]domain.Status
	closed   bool
}

// New creates a session bound to parent.
func New(parent context.Context, backend Backend, opts Options) *Session {
	logger := observability.OrNop(opts.Logger)
	store := jobstate.New(logger)
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		backend:    backend,
		store:      store,
		submitter:  submit.New(backend, store, logger),
		supervisor: poller.NewSupervisor(ctx, poller.New(backend, store, opts.Interval, logger)),
		ledger:     opts.Ledger,
		logger:     logger.WithOperation("session"),
		ctx:        ctx,
		cancel:     cancel,
		recorded:   make(map[string]domain.Status),
	}

	if opts.Publisher != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			broadcast.Forward(ctx, store, opts.Publisher, logger)
		}()
	}
	if s.ledger != nil {
		views, unsubscribe := store.Subscribe(8)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer unsubscribe()
			s.trackLedger(views)
		}()
	}

	return s
}

// Store exposes the job state for readers.
func (s *Session) Store() *jobstate.Store {
	return s.store
}

// Submit uploads c and starts following the new job.
//
// A rejected file name only sets the visible error; whatever was being
// followed keeps going. Otherwise the previous poller is stopped before the
// upload starts, so it can no longer write.
func (s *Session) Submit(ctx context.Context, c submit.Candidate) (domain.JobHandle, error) {
	if c.Validate() == nil {
		s.supervisor.Stop()
	}

	handle, err := s.submitter.Submit(ctx, c)
	if err != nil {
		return domain.JobHandle{}, err
	}

	if s.ledger != nil {
		if err := s.ledger.Record(ctx, handle.JobID, c.Name); err != nil {
			s.logger.Warn().Str("job_id", handle.JobID).Err(err).Msg("Failed to record job")
		}
	}

	s.supervisor.Follow(handle.JobID)
	return handle, nil
}

// Resume follows an existing job id as if it had just been submitted.
func (s *Session) Resume(ctx context.Context, jobID string) {
	s.supervisor.Stop()

	if s.ledger != nil {
		if err := s.ledger.Record(ctx, jobID, ""); err != nil {
			s.logger.Warn().Str("job_id", jobID).Err(err).Msg("Failed to record job")
		}
	}

	s.store.Seed(jobID)
	s.supervisor.Follow(jobID)
	s.logger.Info().Str("job_id", jobID).Msg("Resumed job")
}

// Wait blocks until the current poller exits or ctx ends and returns the
// final view. The error is the poll failure that ended polling, if any.
func (s *Session) Wait(ctx context.Context) (jobstate.View, error) {
	select {
	case <-s.supervisor.Done():
	case <-ctx.Done():
		return s.store.Snapshot(), ctx.Err()
	}
	return s.store.Snapshot(), s.supervisor.Err()
}

// Screen projects v for display.
func (s *Session) Screen(v jobstate.View) render.Screen {
	return render.Project(v, s.backend.DownloadURL)
}

// Close stops polling and background readers. No store writes happen after
// Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.supervisor.Stop()
	s.cancel()
	s.wg.Wait()

	if s.ledger != nil {
		s.recordView(context.Background(), s.store.Snapshot())
	}
}

func (s *Session) trackLedger(views <-chan jobstate.View) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			s.recordView(s.ctx, v)
		}
	}
}

func (s *Session) recordView(ctx context.Context, v jobstate.View) {
	if v.Job == nil {
		return
	}

	s.mu.Lock()
	seen := s.recorded[v.Job.JobID] == v.Job.Status
	s.mu.Unlock()
	if seen {
		return
	}

	var source string
	if v.Job.Result != nil {
		source = v.Job.Result.SourceFilename
	}
	if err := s.ledger.MarkStatus(ctx, v.Job.JobID, v.Job.Status, v.Job.Error, source); err != nil {
		s.logger.Warn().Str("job_id", v.Job.JobID).Err(err).Msg("Failed to update ledger")
		return
	}

	s.mu.Lock()
	s.recorded[v.Job.JobID] = v.Job.Status
	s.mu.Unlock()
}
