package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/api"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/testutil"
)

const testInterval = 5 * time.Millisecond

type fetchFunc func(ctx context.Context, jobID string) (*domain.JobStatus, error)

func (f fetchFunc) Job(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	return f(ctx, jobID)
}

// sequence answers with statuses in order and repeats the last one.
type sequence struct {
	mu       sync.Mutex
	statuses []domain.JobStatus
	errAt    int
	calls    int
	inFlight int32
	maxIn    int32
}

func (s *sequence) Job(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		old := atomic.LoadInt32(&s.maxIn)
		if n <= old || atomic.CompareAndSwapInt32(&s.maxIn, old, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.errAt > 0 && s.calls == s.errAt {
		return nil, domain.PollError(domain.MsgPollFailed, errors.New("connection refused"))
	}
	idx := s.calls - 1
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	st := s.statuses[idx]
	return &st, nil
}

func (s *sequence) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPoller_StopsOnTerminal(t *testing.T) {
	store := jobstate.New(nil)
	store.Seed("j1")
	seq := &sequence{statuses: []domain.JobStatus{
		{JobID: "j1", Status: domain.StatusQueued},
		testutil.Running("j1", 0.5, "Working"),
		testutil.Completed("j1", testutil.TwoSlideDoc()),
	}}

	err := New(seq, store, testInterval, nil).Run(context.Background(), "j1")
	require.NoError(t, err)

	assert.Equal(t, 3, seq.Calls())
	assert.Equal(t, int32(1), atomic.LoadInt32(&seq.maxIn), "fetches never overlap")

	v := store.Snapshot()
	assert.Equal(t, domain.StatusCompleted, v.Job.Status)
	assert.Empty(t, v.Error)
}

func TestPoller_SlowFetchKeepsStartToStartCadence(t *testing.T) {
	const interval = 25 * time.Millisecond
	const slow = 4 * interval

	store := jobstate.New(nil)
	store.Seed("j1")

	var (
		mu       sync.Mutex
		starts   []time.Time
		ends     []time.Time
		inFlight int32
		maxIn    int32
	)
	fetcher := fetchFunc(func(ctx context.Context, jobID string) (*domain.JobStatus, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			old := atomic.LoadInt32(&maxIn)
			if n <= old || atomic.CompareAndSwapInt32(&maxIn, old, n) {
				break
			}
		}

		mu.Lock()
		starts = append(starts, time.Now())
		call := len(starts)
		mu.Unlock()

		if call == 2 {
			time.Sleep(slow)
		}

		mu.Lock()
		ends = append(ends, time.Now())
		mu.Unlock()

		st := testutil.Running(jobID, float64(call)/10, "")
		if call == 4 {
			st = testutil.Completed(jobID, testutil.TwoSlideDoc())
		}
		return &st, nil
	})

	require.NoError(t, New(fetcher, store, interval, nil).Run(context.Background(), "j1"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 4)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxIn), "fetches never overlap")

	// Timers never fire early, so allow only clock granularity below the interval.
	const slack = 2 * time.Millisecond

	assert.GreaterOrEqual(t, starts[1].Sub(starts[0]), interval-slack, "regular tick")

	overrun := starts[2].Sub(starts[1])
	assert.GreaterOrEqual(t, overrun, slow, "next fetch waits for the slow one")
	assert.Less(t, starts[2].Sub(ends[1]), interval, "next fetch starts right after an overrun")

	recovered := starts[3].Sub(starts[2])
	assert.GreaterOrEqual(t, recovered, interval-slack, "cadence returns to one interval")
	assert.Less(t, recovered, slow, "no leftover delay from the overrun")

	assert.Equal(t, domain.StatusCompleted, store.Snapshot().Job.Status)
}

func TestPoller_SingleFailureStopsPolling(t *testing.T) {
	store := jobstate.New(nil)
	store.Seed("j1")
	seq := &sequence{
		statuses: []domain.JobStatus{testutil.Running("j1", 0.2, "")},
		errAt:    2,
	}

	err := New(seq, store, testInterval, nil).Run(context.Background(), "j1")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypePoll))
	assert.Equal(t, 2, seq.Calls())

	time.Sleep(5 * testInterval)
	assert.Equal(t, 2, seq.Calls(), "no retry after failure")

	v := store.Snapshot()
	assert.Equal(t, domain.MsgPollFailed, v.Error)
	assert.Equal(t, 0.2, v.Job.Progress, "last good status kept")
}

func TestPoller_StopsWhenStoreMovesOn(t *testing.T) {
	store := jobstate.New(nil)
	store.Seed("j1")

	var calls int32
	fetcher := fetchFunc(func(ctx context.Context, jobID string) (*domain.JobStatus, error) {
		if atomic.AddInt32(&calls, 1) == 2 {
			store.Seed("j2")
		}
		st := testutil.Running(jobID, 0.1, "")
		return &st, nil
	})

	err := New(fetcher, store, testInterval, nil).Run(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, domain.QueuedStatus("j2"), *store.Snapshot().Job)
}

func TestPoller_CancelReturnsPromptly(t *testing.T) {
	store := jobstate.New(nil)
	store.Seed("j1")

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	fetcher := fetchFunc(func(ctx context.Context, jobID string) (*domain.JobStatus, error) {
		close(started)
		<-release // ignores ctx on purpose
		st := testutil.Completed(jobID, nil)
		return &st, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- New(fetcher, store, testInterval, nil).Run(ctx, "j1") }()

	<-started
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not return after cancel")
	}
	assert.Equal(t, domain.StatusQueued, store.Snapshot().Job.Status)
}

func TestPoller_FirstFetchWaitsOneInterval(t *testing.T) {
	store := jobstate.New(nil)
	store.Seed("j1")
	seq := &sequence{statuses: []domain.JobStatus{testutil.Failed("j1", "x")}}

	interval := 40 * time.Millisecond
	start := time.Now()
	require.NoError(t, New(seq, store, interval, nil).Run(context.Background(), "j1"))
	assert.GreaterOrEqual(t, time.Since(start), interval)
}

func TestNew_DefaultInterval(t *testing.T) {
	p := New(&sequence{}, jobstate.New(nil), 0, nil)
	assert.Equal(t, 1500*time.Millisecond, p.Interval())
}

func TestPoller_ScenarioFailedAgainstBackend(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Script("j1",
		domain.JobStatus{Status: domain.StatusQueued},
		domain.JobStatus{Status: domain.StatusFailed, Progress: 1, Error: "corrupt archive"},
	)
	client := api.NewClient(api.Config{BaseURL: backend.URL(), RequestTimeout: time.Second}, nil)

	store := jobstate.New(nil)
	store.Seed("j1")

	require.NoError(t, New(client, store, testInterval, nil).Run(context.Background(), "j1"))

	v := store.Snapshot()
	assert.Equal(t, domain.StatusFailed, v.Job.Status)
	assert.Equal(t, "corrupt archive", v.Job.Error)
	assert.Empty(t, v.Error, "server-reported failure is not a client error")

	time.Sleep(5 * testInterval)
	assert.Equal(t, 2, backend.PollCount("j1"))
}
