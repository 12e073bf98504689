// Package broadcast fans store snapshots out to readers in other processes.
package broadcast

import (
	"context"
	"time"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/observability"
)

// Snapshot is the message published for every store change.
type Snapshot struct {
	JobID       string        `json:"job_id"`
	View        jobstate.View `json:"view"`
	PublishedAt time.Time     `json:"published_at"`
}

// Publisher publishes snapshots. Implementations are read-only with respect
// to the store.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, Snapshot) error { return nil }
func (Nop) Close() error                             { return nil }

// Forward publishes every store view that carries a job until ctx is done.
// Publish failures are logged and do not stop forwarding.
func Forward(ctx context.Context, store *jobstate.Store, pub Publisher, logger *observability.Logger) {
	log := observability.OrNop(logger).WithOperation("broadcast")

	views, cancel := store.Subscribe(8)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			if v.Job == nil {
				continue
			}
			snap := Snapshot{JobID: v.Job.JobID, View: v, PublishedAt: time.Now().UTC()}
			if err := pub.Publish(ctx, snap); err != nil {
				log.Warn().Str("job_id", snap.JobID).Err(err).Msg("Publish failed")
			}
		}
	}
}
