package render

import (
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
)

// Screen is everything the presentation layer shows for one store view.
type Screen struct {
	Uploading    bool          `json:"uploading"`
	Error        string        `json:"error,omitempty"`
	JobID        string        `json:"job_id,omitempty"`
	Status       domain.Status `json:"status,omitempty"`
	Message      string        `json:"message,omitempty"`
	Percent      int           `json:"percent"`
	Failure      string        `json:"failure,omitempty"`
	ShowDownload bool          `json:"show_download"`
	DownloadURL  string        `json:"download_url,omitempty"`
	Document     *DocumentView `json:"document,omitempty"`
}

// Project maps a store view to a Screen. downloadURL builds the artifact link
// and is only called for completed jobs; it may be nil.
//
// The document and download link appear only when the job completed. Partial
// results on running jobs are not shown.
func Project(view jobstate.View, downloadURL func(jobID string) string) Screen {
	s := Screen{
		Uploading: view.Uploading,
		Error:     view.Error,
	}

	job := view.Job
	if job == nil {
		return s
	}

	s.JobID = job.JobID
	s.Status = job.Status
	s.Message = job.Message
	s.Percent = Percent(job.Progress)

	switch job.Status {
	case domain.StatusCompleted:
		s.ShowDownload = true
		if downloadURL != nil {
			s.DownloadURL = downloadURL(job.JobID)
		}
		s.Document = Document(job.Result)
	case domain.StatusFailed:
		s.Failure = job.Error
		if s.Failure == "" {
			s.Failure = "Job failed"
		}
	}

	return s
}
