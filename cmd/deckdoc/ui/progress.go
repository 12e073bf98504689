package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/render"
)

// Spinner wraps a spinner instance for the indeterminate upload phase.
// It is inert in JSON mode.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a new spinner with the given message.
func NewSpinner(message string) *Spinner {
	if jsonMode {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = errOut
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	if s.spinner != nil {
		s.spinner.Start()
	}
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	if s.spinner != nil {
		s.spinner.Stop()
	}
}

// JobProgress renders a job's percentage and status message as a bar.
type JobProgress struct {
	bar     *progressbar.ProgressBar
	last    int
	status  string
	message string
}

// NewJobProgress creates a 0..100 bar on stderr. It is inert in JSON mode.
func NewJobProgress() *JobProgress {
	if jsonMode {
		return &JobProgress{}
	}
	bar := progressbar.NewOptions(
		100,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("queued"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(errOut),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(errOut, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &JobProgress{bar: bar}
}

// Update shows a screen's status, message and percentage.
func (p *JobProgress) Update(s render.Screen) {
	if p.bar == nil || s.JobID == "" {
		return
	}
	if string(s.Status) != p.status || s.Message != p.message {
		p.status = string(s.Status)
		p.message = s.Message
		desc := p.status
		if p.message != "" {
			desc = fmt.Sprintf("%s · %s", p.status, p.message)
		}
		p.bar.Describe(desc)
	}
	if s.Percent != p.last {
		p.last = s.Percent
		_ = p.bar.Set(s.Percent)
	}
}

// Finish completes the bar.
func (p *JobProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

// Abort leaves the bar where it is and moves to a new line.
func (p *JobProgress) Abort() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Exit()
	fmt.Fprintln(errOut)
}

// Transfer shows byte progress for an artifact download.
type Transfer struct {
	progress *mpb.Progress
	bar      *mpb.Bar
}

// NewTransfer creates a byte bar for name. A non-positive total means the size
// is unknown. It is inert in JSON mode.
func NewTransfer(name string, total int64) *Transfer {
	if jsonMode {
		return &Transfer{}
	}

	progress := mpb.New(mpb.WithWidth(40), mpb.WithOutput(errOut))
	if total <= 0 {
		total = 0
	}
	bar := progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), " done"),
		),
	)
	return &Transfer{progress: progress, bar: bar}
}

// Reader wraps r so reads advance the bar.
func (t *Transfer) Reader(r io.Reader) io.Reader {
	if t.bar == nil {
		return r
	}
	return t.bar.ProxyReader(r)
}

// Close completes the bar and waits for the final render. When the download
// failed the bar is aborted instead.
func (t *Transfer) Close(ok bool) {
	if t.progress == nil {
		return
	}
	if ok {
		// Negative total means "whatever was read", which also covers unknown sizes.
		t.bar.SetTotal(-1, true)
	} else {
		t.bar.Abort(false)
	}
	if IsTerminal() {
		t.progress.Wait()
	} else {
		t.progress.Shutdown()
	}
}
