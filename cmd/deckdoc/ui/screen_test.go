package ui

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/render"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/testutil"
)

func captureOutput(t *testing.T, asJSON bool) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	InitUI(true, asJSON)
	SetOutput(&stdout, &stderr)
	t.Cleanup(func() {
		InitUI(true, false)
		SetOutput(os.Stdout, os.Stderr)
	})
	return &stdout, &stderr
}

func url(id string) string { return "http://localhost:8000/api/job/" + id + "/download" }

func TestPrintScreen_Completed(t *testing.T) {
	stdout, _ := captureOutput(t, false)

	st := testutil.Completed("j1", testutil.TwoSlideDoc())
	require.NoError(t, PrintScreen(render.Project(jobstate.View{Job: &st}, url)))

	text := stdout.String()
	assert.Contains(t, text, "COMPLETED")
	assert.Contains(t, text, "100%")
	assert.Contains(t, text, "Slide 1: Intro")
	assert.Contains(t, text, "• Hello")
	assert.Contains(t, text, "▣ img1.png")
	assert.Contains(t, text, "OCR: Q3 Revenue")
	assert.Contains(t, text, "http://localhost:8000/api/job/j1/download")
}

func TestPrintScreen_Failed(t *testing.T) {
	stdout, _ := captureOutput(t, false)

	st := testutil.Failed("j1", "corrupt archive")
	require.NoError(t, PrintScreen(render.Project(jobstate.View{Job: &st}, url)))

	text := stdout.String()
	assert.Contains(t, text, "FAILED")
	assert.Contains(t, text, "corrupt archive")
	assert.NotContains(t, text, "Download")
}

func TestPrintScreen_ErrorOnly(t *testing.T) {
	stdout, stderr := captureOutput(t, false)

	require.NoError(t, PrintScreen(render.Project(jobstate.View{Error: "file too large"}, url)))
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "file too large")
}

func TestPrintScreen_JSON(t *testing.T) {
	stdout, _ := captureOutput(t, true)

	st := testutil.Running("j1", 0.42, "Working")
	require.NoError(t, PrintScreen(render.Project(jobstate.View{Job: &st}, url)))

	var got render.Screen
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, 42, got.Percent)
	assert.Equal(t, "j1", got.JobID)
	assert.False(t, got.ShowDownload)
}

func TestMessagesSuppressedInJSONMode(t *testing.T) {
	stdout, _ := captureOutput(t, true)

	Success("done")
	Info("info")
	Step("step")
	Warning("warn")
	Table([]string{"A"}, [][]string{{"1"}})
	assert.Empty(t, stdout.String())
}
