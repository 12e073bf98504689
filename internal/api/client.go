// Package api is the HTTP client for the deck extraction backend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/observability"
)

const (
	uploadPath = "/api/upload"
	jobPath    = "/api/job/"
	healthPath = "/api/health"

	deckContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

	// maxErrorBody bounds how much of an error response is read for its detail.
	maxErrorBody = 64 << 10
)

// Config holds client settings.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	Retry          *RetryConfig
}

// Client talks to the extraction backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
	uploadTimeout  time.Duration
	retry          *RetryConfig
	logger         *observability.Logger
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

type uploadResponse struct {
	JobID string `json:"jobId"`
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Artifact is an open download stream. The caller must close Body.
type Artifact struct {
	Filename string
	Size     int64 // -1 when unknown
	Body     io.ReadCloser
}

// NewClient creates a new backend client.
func NewClient(cfg Config, logger *observability.Logger) *Client {
	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 5 * time.Minute
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{},
		requestTimeout: cfg.RequestTimeout,
		uploadTimeout:  cfg.UploadTimeout,
		retry:          retry,
		logger:         observability.OrNop(logger).WithOperation("api"),
	}
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload posts one deck as multipart field "file" and returns the new job handle.
// Any failure is an UploadError whose Message is the server's detail when present.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (domain.JobHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	body, contentType := streamUploadBody(filename, content)
	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		_ = body.Close()
		return domain.JobHandle{}, domain.UploadError(domain.MsgUploadFailed, err)
	}
	req.Header.Set("Content-Type", contentType)

	log := c.logger.WithContext(req.Context())
	log.Debug().Str("file", filename).Msg("Uploading deck")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.JobHandle{}, domain.UploadError(domain.MsgUploadFailed, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		detail, _ := readDetail(resp.Body)
		msg := detail
		if msg == "" {
			msg = domain.MsgUploadFailed
		}
		log.Warn().Int("status", resp.StatusCode).Str("detail", detail).Msg("Upload rejected")
		return domain.JobHandle{}, domain.UploadError(msg, &StatusError{StatusCode: resp.StatusCode, Detail: detail})
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.JobHandle{}, domain.UploadError(domain.MsgUploadFailed, fmt.Errorf("decode upload response: %w", err))
	}
	if out.JobID == "" {
		return domain.JobHandle{}, domain.UploadError(domain.MsgUploadFailed, fmt.Errorf("upload response missing jobId"))
	}

	log.Info().Str("job_id", out.JobID).Msg("Deck accepted")
	return domain.JobHandle{JobID: out.JobID}, nil
}

// Job fetches the current status of a job. Failures are PollErrors.
func (c *Client) Job(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.jobURL(jobID), nil)
	if err != nil {
		return nil, domain.PollError(domain.MsgPollFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.PollError(domain.MsgPollFailed, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		detail, _ := readDetail(resp.Body)
		return nil, domain.PollError(domain.MsgPollFailed, &StatusError{StatusCode: resp.StatusCode, Detail: detail})
	}

	var status domain.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, domain.PollError(domain.MsgPollFailed, fmt.Errorf("decode job status: %w", err))
	}
	if status.JobID == "" {
		status.JobID = jobID
	}
	if err := status.Validate(); err != nil {
		return nil, domain.PollError(domain.MsgPollFailed, err)
	}

	return &status, nil
}

// DownloadURL is the direct link to a completed job's artifact.
func (c *Client) DownloadURL(jobID string) string {
	return c.jobURL(jobID) + "/download"
}

// Download opens the artifact stream for a completed job.
// Retryable statuses (429, 5xx) are retried with exponential backoff.
func (c *Client) Download(ctx context.Context, jobID string) (*Artifact, error) {
	resp, err := c.getWithRetry(ctx, c.DownloadURL(jobID))
	if err != nil {
		return nil, domain.DownloadError(domain.MsgDownloadFailed, err)
	}

	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		detail, _ := readDetail(resp.Body)
		msg := detail
		if msg == "" {
			msg = domain.MsgDownloadFailed
		}
		return nil, domain.DownloadError(msg, &StatusError{StatusCode: resp.StatusCode, Detail: detail})
	}

	return &Artifact{
		Filename: artifactFilename(resp.Header.Get("Content-Disposition"), jobID),
		Size:     resp.ContentLength,
		Body:     resp.Body,
	}, nil
}

// Health checks that the backend answers {"status":"ok"}.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.getWithRetry(ctx, c.baseURL+healthPath)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("health check: %w", &StatusError{StatusCode: resp.StatusCode})
	}

	var out healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if out.Status != "ok" {
		return fmt.Errorf("backend reports status %q", out.Status)
	}
	return nil
}

func (c *Client) jobURL(jobID string) string {
	return c.baseURL + jobPath + url.PathEscape(jobID)
}

// newRequest builds a request carrying a request id, reusing one already in ctx.
func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	id := observability.RequestIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = observability.ContextWithRequestID(ctx, id)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-ID", id)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// streamUploadBody encodes content as multipart field "file" while the request
// is being sent, so a deck is never held in memory. A read error on content
// aborts the request body. The transport closes the returned reader, which
// also stops the writer goroutine when the server answers early.
func streamUploadBody(filename string, content io.Reader) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		h.Set("Content-Type", deckContentType)

		part, err := w.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, content)
			if err != nil {
				err = fmt.Errorf("read file: %w", err)
			}
		}
		if err == nil {
			err = w.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, w.FormDataContentType()
}

// readDetail decodes {"detail": "..."} from an error body. It returns "" and
// false when the body is empty, not JSON, or detail is not a string.
func readDetail(r io.Reader) (string, bool) {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return "", false
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return "", false
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil || detail == "" {
		return "", false
	}
	return detail, true
}

func artifactFilename(disposition, jobID string) string {
	fallback := fmt.Sprintf("knowledge_doc_%s.md", jobID)
	if disposition == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return fallback
	}
	name := params["filename"]
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
