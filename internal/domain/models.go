// Package domain holds the job and knowledge-document model shared by the
// client components.
package domain

import (
	"fmt"
	"strings"
)

// DeckExtension is the only accepted upload suffix. The check is case-sensitive.
const DeckExtension = ".pptx"

// Status is the server-reported lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the four legal values.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions can occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobHandle identifies one server-side job. It is created once per upload.
type JobHandle struct {
	JobID string `json:"jobId"`
}

// JobStatus is a full snapshot of a job as reported by the backend.
// Empty Message/Error mean absent; Result is nil unless the job completed.
type JobStatus struct {
	JobID    string        `json:"job_id"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Progress float64       `json:"progress"`
	Result   *KnowledgeDoc `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// QueuedStatus is the placeholder seeded right after a successful upload.
func QueuedStatus(jobID string) JobStatus {
	return JobStatus{
		JobID:    jobID,
		Status:   StatusQueued,
		Message:  "Queued",
		Progress: 0,
	}
}

// Validate checks the fields the client relies on.
func (j *JobStatus) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("job status missing job_id")
	}
	if !j.Status.Valid() {
		return fmt.Errorf("unknown job status %q", j.Status)
	}
	return nil
}

// KnowledgeDoc is the structured extraction result.
// SlideCount comes from the server and may disagree with len(Slides).
type KnowledgeDoc struct {
	SourceFilename string      `json:"source_filename"`
	SlideCount     int         `json:"slide_count"`
	Slides         []SlideInfo `json:"slides"`
}

// SlideInfo holds everything extracted from one slide.
type SlideInfo struct {
	SlideIndex int                  `json:"slide_index"`
	Title      string               `json:"title,omitempty"`
	TextItems  []string             `json:"text_items"`
	Notes      string               `json:"notes,omitempty"`
	Images     []ExtractedImageInfo `json:"images"`
}

// ExtractedImageInfo describes one picture and its OCR text.
type ExtractedImageInfo struct {
	ImageID    string `json:"image_id"`
	Filename   string `json:"filename"`
	SlideIndex int    `json:"slide_index"`
	OCRText    string `json:"ocr_text,omitempty"`
}

// DisplayName is the last "/"-delimited segment of Filename.
func (i ExtractedImageInfo) DisplayName() string {
	return i.Filename[strings.LastIndex(i.Filename, "/")+1:]
}

// HasDeckExtension reports whether name carries the accepted suffix.
func HasDeckExtension(name string) bool {
	return strings.HasSuffix(name, DeckExtension)
}
