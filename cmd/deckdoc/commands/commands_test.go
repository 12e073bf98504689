package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/history"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/render"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/testutil"
)

// runCLI executes the root command in JSON mode against backend and returns
// what was written to stdout.
func runCLI(t *testing.T, backend *testutil.Backend, args ...string) (*bytes.Buffer, error) {
	t.Helper()

	t.Setenv("API_BASE", backend.URL())
	t.Setenv("POLL_INTERVAL", "10ms")
	t.Setenv("DECKDOC_HISTORY_ENABLED", "false")

	var stdout, stderr bytes.Buffer
	ui.SetOutput(&stdout, &stderr)
	t.Cleanup(func() {
		ui.SetOutput(os.Stdout, os.Stderr)
		ui.InitUI(true, false)
		outputJSON = false
		submitNoWait, submitDownload, submitMarkdown = false, false, ""
		downloadOutput, downloadDir = "", ""
	})

	rootCmd.SetArgs(append([]string{"--json", "--no-color"}, args...))
	err := rootCmd.Execute()
	return &stdout, err
}

func decodeScreen(t *testing.T, data []byte) render.Screen {
	t.Helper()
	var s render.Screen
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func writeDeck(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04deck"), 0o644))
	return path
}

func TestSubmitCommand_CompletesAndExports(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.AssignJobIDs("job-1")
	backend.Script("job-1",
		testutil.Running("job-1", 0.5, "Parsing slides"),
		testutil.Completed("job-1", testutil.TwoSlideDoc()),
	)
	backend.SetArtifact("job-1", "knowledge_doc_job-1.md", "# deck\n")

	outDir := t.TempDir()
	mdPath := filepath.Join(outDir, "export.md")
	t.Setenv("DECKDOC_DOWNLOAD_DIR", outDir)

	stdout, err := runCLI(t, backend, "submit", writeDeck(t, "deck.pptx"), "--markdown", mdPath, "--download")
	require.NoError(t, err)

	screen := decodeScreen(t, stdout.Bytes())
	assert.Equal(t, "job-1", screen.JobID)
	assert.Equal(t, domain.StatusCompleted, screen.Status)
	assert.Equal(t, 100, screen.Percent)
	assert.True(t, screen.ShowDownload)
	require.NotNil(t, screen.Document)
	assert.Equal(t, 2, screen.Document.SlideCount)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "Q3 Revenue")

	artifact, err := os.ReadFile(filepath.Join(outDir, "knowledge_doc_job-1.md"))
	require.NoError(t, err)
	assert.Equal(t, "# deck\n", string(artifact))

	uploads := backend.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "deck.pptx", uploads[0].Filename)
}

func TestSubmitCommand_RejectsNonPptxWithoutUpload(t *testing.T) {
	backend := testutil.NewBackend(t)

	_, err := runCLI(t, backend, "submit", writeDeck(t, "notes.pdf"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	assert.Equal(t, domain.MsgUnsupportedFile, domain.UserMessage(err))
	assert.Zero(t, backend.UploadCount())
}

func TestSubmitCommand_JobFailure(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.AssignJobIDs("job-2")
	backend.Script("job-2", testutil.Failed("job-2", "corrupt file"))

	stdout, err := runCLI(t, backend, "submit", writeDeck(t, "deck.pptx"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeJobFailed))

	screen := decodeScreen(t, stdout.Bytes())
	assert.Equal(t, domain.StatusFailed, screen.Status)
	assert.Equal(t, "corrupt file", screen.Failure)
	assert.False(t, screen.ShowDownload)
	assert.Nil(t, screen.Document)
}

func TestSubmitCommand_NoWait(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.AssignJobIDs("job-3")

	stdout, err := runCLI(t, backend, "submit", writeDeck(t, "deck.pptx"), "--no-wait")
	require.NoError(t, err)

	var handle domain.JobHandle
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &handle))
	assert.Equal(t, "job-3", handle.JobID)
}

func TestStatusCommand(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Script("job-4", testutil.Running("job-4", 0.25, "OCR"))

	stdout, err := runCLI(t, backend, "status", "job-4")
	require.NoError(t, err)

	screen := decodeScreen(t, stdout.Bytes())
	assert.Equal(t, domain.StatusRunning, screen.Status)
	assert.Equal(t, 25, screen.Percent)
	assert.Equal(t, "OCR", screen.Message)
	assert.Equal(t, 1, backend.PollCount("job-4"))
}

func TestWatchCommand_RequiresHistoryWithoutID(t *testing.T) {
	backend := testutil.NewBackend(t)

	_, err := runCLI(t, backend, "watch")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestDownloadCommand(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.SetArtifact("job-5", "knowledge_doc_job-5.md", "hello")
	target := filepath.Join(t.TempDir(), "out.md")

	stdout, err := runCLI(t, backend, "download", "job-5", "-o", target)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, target, got["path"])

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestDownloadCommand_NotFound(t *testing.T) {
	backend := testutil.NewBackend(t)
	target := filepath.Join(t.TempDir(), "out.md")

	_, err := runCLI(t, backend, "download", "missing", "-o", target)
	require.Error(t, err)
	assert.Equal(t, "Markdown not found", domain.UserMessage(err))
	assert.NoFileExists(t, target)
}

func TestHealthCommand(t *testing.T) {
	backend := testutil.NewBackend(t)

	stdout, err := runCLI(t, backend, "health")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, backend.URL(), got["base_url"])
}

func TestWriteMarkdown_RequiresCompletedJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	running := testutil.Running("job-6", 0.5, "")

	err := writeMarkdown(jobstate.View{Job: &running}, path)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	assert.NoFileExists(t, path)
}

func TestHistoryTable_AlignsWithColour(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	var stdout bytes.Buffer
	ui.InitUI(false, false)
	ui.SetOutput(&stdout, &bytes.Buffer{})
	t.Cleanup(func() {
		color.NoColor = prev
		ui.InitUI(true, false)
		ui.SetOutput(os.Stdout, os.Stderr)
	})

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := historyRows([]history.Entry{
		{JobID: "job-a", SourceFilename: "deck.pptx", Status: domain.StatusCompleted, SubmittedAt: at},
		{JobID: "job-b", Status: domain.StatusRunning, SubmittedAt: at},
		{JobID: "job-c", SourceFilename: "q3.pptx", Status: domain.StatusFailed, SubmittedAt: at, Error: "corrupt"},
	})
	for _, row := range rows {
		assert.NotContains(t, strings.Join(row, ""), "\x1b[", "cells carry no escape codes")
	}
	assert.Equal(t, "-", rows[1][1])
	assert.Equal(t, "COMPLETED", rows[0][2])

	ui.Table([]string{"JOB", "FILE", "STATUS", "SUBMITTED", "ERROR"}, rows)

	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	col := strings.Index(lines[0], "SUBMITTED")
	require.Positive(t, col)
	date := at.Local().Format(time.DateTime)
	for _, line := range lines[2:] {
		assert.Equal(t, col, strings.Index(line, date), line)
	}
}
