// Package submit validates a deck and creates the extraction job.
package submit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/observability"
)

// Uploader performs the create-job request.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (domain.JobHandle, error)
}

// Candidate is one file offered for submission.
type Candidate struct {
	Name    string
	Content io.Reader
}

// Validate checks the extension. It never touches Content.
func (c Candidate) Validate() error {
	if !domain.HasDeckExtension(c.Name) {
		return domain.ValidationError(domain.MsgUnsupportedFile, fmt.Errorf("rejected %q", c.Name))
	}
	return nil
}

// OpenCandidate opens path for upload. The name is the base name of path and
// is validated before the file is opened. The caller closes the returned file.
func OpenCandidate(path string) (Candidate, io.Closer, error) {
	c := Candidate{Name: filepath.Base(path)}
	if err := c.Validate(); err != nil {
		return Candidate{}, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Candidate{}, nil, domain.IOError(fmt.Sprintf("Cannot open %s", path), err)
	}
	c.Content = f
	return c, f, nil
}

// Submitter is the Upload Submitter.
type Submitter struct {
	uploader Uploader
	store    *jobstate.Store
	logger   *observability.Logger
}

// New creates a Submitter writing into store.
func New(uploader Uploader, store *jobstate.Store, logger *observability.Logger) *Submitter {
	return &Submitter{
		uploader: uploader,
		store:    store,
		logger:   observability.OrNop(logger).WithOperation("submit"),
	}
}

// Submit validates c, uploads it and seeds the store with the queued placeholder.
//
// A rejected name fails with a ValidationError before any request is made and
// leaves the current job untouched. Otherwise the previous job and error are
// discarded and the uploading flag stays raised until Submit returns.
func (s *Submitter) Submit(ctx context.Context, c Candidate) (domain.JobHandle, error) {
	if err := c.Validate(); err != nil {
		s.logger.Info().Str("file", c.Name).Msg("Rejected file")
		s.store.SetError(domain.UserMessage(err))
		return domain.JobHandle{}, err
	}

	s.store.BeginUpload()
	defer s.store.EndUpload()

	handle, err := s.uploader.Upload(ctx, c.Name, c.Content)
	if err != nil {
		if !domain.IsType(err, domain.ErrorTypeUpload) {
			err = domain.UploadError(domain.MsgUploadFailed, err)
		}
		s.logger.Warn().Str("file", c.Name).Err(err).Msg("Upload failed")
		s.store.SetError(domain.UserMessage(err))
		return domain.JobHandle{}, err
	}

	s.store.Seed(handle.JobID)
	s.logger.Info().Str("file", c.Name).Str("job_id", handle.JobID).Msg("Job created")
	return handle, nil
}
