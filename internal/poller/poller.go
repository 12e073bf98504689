// Package poller follows one job until it reaches a terminal state.
package poller

import (
	"context"
	"time"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/observability"
)

// DefaultInterval is the start-to-start delay between two status fetches.
const DefaultInterval = 1500 * time.Millisecond

// StatusFetcher fetches one job status snapshot.
type StatusFetcher interface {
	Job(ctx context.Context, jobID string) (*domain.JobStatus, error)
}

// Poller is the Job Poller. One Run call follows one job id.
type Poller struct {
	fetcher  StatusFetcher
	store    *jobstate.Store
	interval time.Duration
	logger   *observability.Logger
}

// New creates a Poller writing into store. A non-positive interval means DefaultInterval.
func New(fetcher StatusFetcher, store *jobstate.Store, interval time.Duration, logger *observability.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetcher:  fetcher,
		store:    store,
		interval: interval,
		logger:   observability.OrNop(logger).WithOperation("poller"),
	}
}

// Interval returns the configured cadence.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

type fetchResult struct {
	status *domain.JobStatus
	err    error
}

// Run polls jobID until the job is terminal, another job takes over the store,
// a fetch fails, or ctx is cancelled.
//
// Fetches never overlap: the next one is scheduled one interval after the
// previous one started, or immediately if it took longer than that. A failed
// fetch is surfaced on the store and ends the loop without retrying.
// Once ctx is cancelled nothing more is written to the store.
func (p *Poller) Run(ctx context.Context, jobID string) error {
	log := p.logger.WithJob(jobID)
	log.Debug().Dur("interval", p.interval).Msg("Polling started")

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Polling cancelled")
			return ctx.Err()
		case <-timer.C:
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		started := time.Now()
		status, err := p.fetch(ctx, jobID)
		if ctx.Err() != nil {
			log.Debug().Int("tick", tick).Msg("Polling cancelled during fetch")
			return ctx.Err()
		}
		if err != nil {
			log.Warn().Int("tick", tick).Err(err).Msg("Status fetch failed, polling stopped")
			p.store.FailPolling(ctx, jobID, domain.UserMessage(err))
			return err
		}

		if status.JobID != jobID {
			log.Warn().Str("got", status.JobID).Msg("Backend answered for another job, ignoring")
		} else if !p.store.Apply(ctx, *status) {
			view := p.store.Snapshot()
			if view.JobID() != jobID {
				log.Debug().Str("current", view.JobID()).Msg("Store moved to another job, polling stopped")
				return nil
			}
		}

		log.Debug().
			Int("tick", tick).
			Str("status", string(status.Status)).
			Float64("progress", status.Progress).
			Dur("took", time.Since(started)).
			Msg("Status fetched")

		if p.store.Snapshot().Terminal() {
			log.Info().Str("status", string(status.Status)).Int("ticks", tick).Msg("Job reached terminal state")
			return nil
		}

		wait := p.interval - time.Since(started)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// fetch runs the request on a helper goroutine so cancellation returns at once.
// A result arriving after cancellation lands in the buffered channel and is dropped.
func (p *Poller) fetch(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	ch := make(chan fetchResult, 1)
	go func() {
		st, err := p.fetcher.Job(ctx, jobID)
		ch <- fetchResult{status: st, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err == nil && r.status == nil {
			return nil, domain.PollError(domain.MsgPollFailed, nil)
		}
		return r.status, r.err
	}
}
