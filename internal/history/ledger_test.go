package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return l
}

func TestLedger_RecordAndGet(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "j1", "deck.pptx"))
	require.NoError(t, l.Record(ctx, "j1", "other.pptx"), "duplicate is ignored")

	e, err := l.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "deck.pptx", e.SourceFilename)
	assert.Equal(t, domain.StatusQueued, e.Status)
	assert.False(t, e.SubmittedAt.IsZero())

	_, err = l.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_MarkStatusFillsMissingSourceFilename(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, "resumed", ""))
	require.NoError(t, l.Record(ctx, "known", "deck.pptx"))

	require.NoError(t, l.MarkStatus(ctx, "resumed", domain.StatusRunning, "", ""))
	require.NoError(t, l.MarkStatus(ctx, "resumed", domain.StatusCompleted, "", "quarterly.pptx"))
	require.NoError(t, l.MarkStatus(ctx, "known", domain.StatusCompleted, "", "renamed.pptx"))

	e, err := l.Get(ctx, "resumed")
	require.NoError(t, err)
	assert.Equal(t, "quarterly.pptx", e.SourceFilename)

	e, err = l.Get(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, "deck.pptx", e.SourceFilename, "recorded name is kept")
}

func TestLedger_MarkStatus(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, "j1", "deck.pptx"))

	require.NoError(t, l.MarkStatus(ctx, "j1", domain.StatusRunning, "", ""))
	require.NoError(t, l.MarkStatus(ctx, "j1", domain.StatusFailed, "corrupt archive", ""))
	require.NoError(t, l.MarkStatus(ctx, "j1", domain.StatusRunning, "", ""), "terminal rows are left alone")

	e, err := l.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, e.Status)
	assert.Equal(t, "corrupt archive", e.Error)
	assert.True(t, e.UpdatedAt.After(e.SubmittedAt))

	assert.ErrorIs(t, l.MarkStatus(ctx, "missing", domain.StatusRunning, "", ""), ErrNotFound)
}

func TestLedger_LatestSkipsTerminal(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	_, err := l.Latest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, l.Record(ctx, "a", "a.pptx"))
	require.NoError(t, l.Record(ctx, "b", "b.pptx"))
	require.NoError(t, l.Record(ctx, "c", "c.pptx"))
	require.NoError(t, l.MarkStatus(ctx, "c", domain.StatusCompleted, "", ""))

	e, err := l.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", e.JobID)
}

func TestLedger_List(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.Record(ctx, id, id+".pptx"))
	}

	all, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].JobID)
	assert.Equal(t, "a", all[2].JobID)

	two, err := l.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestOpen_CreatesFileAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	l, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, "j1", "deck.pptx"))
	require.NoError(t, l.Close())

	l, err = Open(path, nil)
	require.NoError(t, err)
	defer l.Close()

	e, err := l.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "deck.pptx", e.SourceFilename)
}
