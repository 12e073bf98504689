package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/api"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/broadcast"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/history"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/render"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/session"
)

// signalContext is cancelled on SIGINT or SIGTERM, which tears the view down.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newClient() *api.Client {
	return api.NewClient(api.Config{
		BaseURL:        cfg.APIBase(),
		RequestTimeout: cfg.API.RequestTimeout,
		UploadTimeout:  cfg.API.UploadTimeout,
		Retry: &api.RetryConfig{
			MaxRetries:     cfg.Download.MaxRetries,
			InitialBackoff: cfg.Download.InitialBackoff,
			MaxBackoff:     cfg.Download.MaxBackoff,
		},
	}, logger)
}

// openLedger returns nil when history is disabled.
func openLedger() (*history.Ledger, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	ledger, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return ledger, nil
}

func newRedis() (*broadcast.Redis, error) {
	r := cfg.Broadcast.Redis
	return broadcast.NewRedis(broadcast.RedisConfig{
		Addr:     r.Addr,
		Username: r.Username,
		Password: r.Password,
		DB:       r.DB,
		PoolSize: r.PoolSize,
		Prefix:   r.Prefix,
	}, logger)
}

// newPublisher returns nil when broadcasting is off. A broker that cannot be
// reached only disables broadcasting.
func newPublisher() broadcast.Publisher {
	if cfg.Broadcast.Driver != "redis" {
		return nil
	}
	pub, err := newRedis()
	if err != nil {
		logger.Warn().Err(err).Msg("Snapshot broadcast disabled")
		return nil
	}
	return pub
}

// sessionEnv bundles a session with the resources it was built from.
type sessionEnv struct {
	client  *api.Client
	session *session.Session
	ledger  *history.Ledger
	pub     broadcast.Publisher
}

// newSessionEnv builds a session. An unusable ledger only disables history.
func newSessionEnv(ctx context.Context) *sessionEnv {
	ledger, err := openLedger()
	if err != nil {
		logger.Warn().Err(err).Msg("Job history disabled")
		ui.Warning("Job history disabled: %v", err)
	}

	client := newClient()
	pub := newPublisher()

	env := &sessionEnv{client: client, ledger: ledger, pub: pub}
	env.session = session.New(ctx, client, session.Options{
		Interval:  cfg.Poller.Interval,
		Ledger:    ledger,
		Publisher: pub,
		Logger:    logger,
	})
	return env
}

func (e *sessionEnv) Close() {
	e.session.Close()
	if e.pub != nil {
		_ = e.pub.Close()
	}
	if e.ledger != nil {
		_ = e.ledger.Close()
	}
}

// follow renders store updates until polling ends and returns the final view.
// A server-reported failure is turned into a JobFailedError for the exit code.
func follow(ctx context.Context, sess *session.Session) (jobstate.View, error) {
	views, unsubscribe := sess.Store().Subscribe(1)
	defer unsubscribe()

	bar := ui.NewJobProgress()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range views {
			bar.Update(sess.Screen(v))
		}
	}()

	final, err := sess.Wait(ctx)
	unsubscribe()
	<-done

	screen := sess.Screen(final)
	bar.Update(screen)
	if final.Terminal() {
		bar.Finish()
	} else {
		bar.Abort()
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return final, fmt.Errorf("interrupted")
		}
		return final, err
	}

	if perr := ui.PrintScreen(screen); perr != nil {
		return final, perr
	}
	if screen.Status == domain.StatusFailed {
		return final, domain.JobFailedError(screen.Failure)
	}
	return final, nil
}

// saveArtifact streams a completed job's artifact into dir, or to path when
// set, and returns the written file.
func saveArtifact(ctx context.Context, client *api.Client, jobID, dir, path string) (string, error) {
	art, err := client.Download(ctx, jobID)
	if err != nil {
		return "", err
	}
	defer art.Body.Close()

	if path == "" {
		path = filepath.Join(dir, art.Filename)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("Cannot write %s", path), err)
	}

	transfer := ui.NewTransfer(filepath.Base(path), art.Size)
	_, copyErr := io.Copy(f, transfer.Reader(art.Body))
	closeErr := f.Close()
	transfer.Close(copyErr == nil && closeErr == nil)

	if copyErr != nil {
		_ = os.Remove(path)
		return "", domain.DownloadError(domain.MsgDownloadFailed, copyErr)
	}
	if closeErr != nil {
		return "", domain.IOError(fmt.Sprintf("Cannot write %s", path), closeErr)
	}
	return path, nil
}

// writeMarkdown exports a completed job's document using the backend layout.
func writeMarkdown(view jobstate.View, path string) error {
	if view.Job == nil || view.Job.Status != domain.StatusCompleted || view.Job.Result == nil {
		return domain.ValidationError("No completed document to export", nil)
	}
	if err := os.WriteFile(path, []byte(render.Markdown(view.Job.Result)), 0o644); err != nil {
		return domain.IOError(fmt.Sprintf("Cannot write %s", path), err)
	}
	return nil
}
