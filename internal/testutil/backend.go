// Package testutil provides a scripted extraction backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
)

// Response is one scripted reply to a job status request.
type Response struct {
	Code  int
	Body  string
	Delay time.Duration
	// Hold, when set, blocks the reply until it is closed.
	Hold chan struct{}
}

// RecordedUpload is what the backend saw for one upload request.
type RecordedUpload struct {
	Field     string
	Filename  string
	Content   []byte
	RequestID string
}

type artifact struct {
	filename string
	content  string
}

// Backend mimics the extraction service HTTP contract.
type Backend struct {
	server *httptest.Server

	mu            sync.Mutex
	uploads       []RecordedUpload
	uploadReject  *Response
	nextJobIDs    []string
	scripts       map[string][]Response
	polls         map[string]int
	artifacts     map[string]artifact
	downloadFails []int
	downloads     int
	healthy       bool
}

// NewBackend starts a backend that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		scripts:   make(map[string][]Response),
		polls:     make(map[string]int),
		artifacts: make(map[string]artifact),
		healthy:   true,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", b.handleHealth)
		r.Post("/upload", b.handleUpload)
		r.Get("/job/{jobID}", b.handleJob)
		r.Get("/job/{jobID}/download", b.handleDownload)
	})

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)

	return b
}

// URL is the API base for clients.
func (b *Backend) URL() string {
	return b.server.URL
}

// AssignJobIDs makes the next uploads return these ids in order.
// Once exhausted, ids are random UUIDs.
func (b *Backend) AssignJobIDs(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextJobIDs = append(b.nextJobIDs, ids...)
}

// RejectUploads makes every upload answer with code and raw body.
func (b *Backend) RejectUploads(code int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploadReject = &Response{Code: code, Body: body}
}

// Script queues status snapshots for a job; the last one repeats.
func (b *Backend) Script(jobID string, statuses ...domain.JobStatus) {
	responses := make([]Response, 0, len(statuses))
	for _, st := range statuses {
		if st.JobID == "" {
			st.JobID = jobID
		}
		data, err := json.Marshal(st)
		if err != nil {
			panic(err)
		}
		responses = append(responses, Response{Code: http.StatusOK, Body: string(data)})
	}
	b.ScriptRaw(jobID, responses...)
}

// ScriptRaw queues raw replies for a job; the last one repeats.
func (b *Backend) ScriptRaw(jobID string, responses ...Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[jobID] = append(b.scripts[jobID], responses...)
}

// SetArtifact makes the download endpoint serve content for jobID.
func (b *Backend) SetArtifact(jobID, filename, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.artifacts[jobID] = artifact{filename: filename, content: content}
}

// FailDownloads makes the next downloads answer with these status codes.
func (b *Backend) FailDownloads(codes ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloadFails = append(b.downloadFails, codes...)
}

// SetHealthy toggles the health endpoint.
func (b *Backend) SetHealthy(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = ok
}

// Uploads returns a copy of recorded uploads.
func (b *Backend) Uploads() []RecordedUpload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedUpload(nil), b.uploads...)
}

// UploadCount is the number of upload requests received.
func (b *Backend) UploadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

// PollCount is the number of status requests received for jobID.
func (b *Backend) PollCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls[jobID]
}

// DownloadCount is the number of download requests received.
func (b *Backend) DownloadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.downloads
}

func (b *Backend) handleHealth(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	ok := b.healthy
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	rec := RecordedUpload{RequestID: r.Header.Get("X-Request-ID")}

	if err := r.ParseMultipartForm(32 << 20); err == nil {
		for field, headers := range r.MultipartForm.File {
			rec.Field = field
			if len(headers) > 0 {
				rec.Filename = headers[0].Filename
				if f, err := headers[0].Open(); err == nil {
					rec.Content, _ = io.ReadAll(f)
					f.Close()
				}
			}
		}
	}

	b.mu.Lock()
	b.uploads = append(b.uploads, rec)
	reject := b.uploadReject
	var jobID string
	if reject == nil && len(b.nextJobIDs) > 0 {
		jobID = b.nextJobIDs[0]
		b.nextJobIDs = b.nextJobIDs[1:]
	}
	b.mu.Unlock()

	if reject != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reject.Code)
		_, _ = io.WriteString(w, reject.Body)
		return
	}

	if rec.Field != "file" || !strings.HasSuffix(rec.Filename, domain.DeckExtension) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": domain.MsgUnsupportedFile})
		return
	}

	if jobID == "" {
		jobID = uuid.NewString()
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": jobID})
}

func (b *Backend) handleJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	b.mu.Lock()
	script, ok := b.scripts[jobID]
	n := b.polls[jobID]
	b.polls[jobID] = n + 1
	b.mu.Unlock()

	if !ok || len(script) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Job not found"})
		return
	}

	resp := script[len(script)-1]
	if n < len(script) {
		resp = script[n]
	}

	if resp.Hold != nil {
		<-resp.Hold
	}
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	_, _ = io.WriteString(w, resp.Body)
}

func (b *Backend) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	b.mu.Lock()
	b.downloads++
	var failCode int
	if len(b.downloadFails) > 0 {
		failCode = b.downloadFails[0]
		b.downloadFails = b.downloadFails[1:]
	}
	art, ok := b.artifacts[jobID]
	b.mu.Unlock()

	if failCode != 0 {
		writeJSON(w, failCode, map[string]string{"detail": http.StatusText(failCode)})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Markdown not found"})
		return
	}

	w.Header().Set("Content-Type", "text/markdown")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, art.filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(art.content)))
	_, _ = io.WriteString(w, art.content)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
