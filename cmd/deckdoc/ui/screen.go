package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/render"
)

// StatusLabel is the uncoloured status label, for aligned columns.
func StatusLabel(status domain.Status) string {
	return strings.ToUpper(string(status))
}

// Badge returns the coloured status label.
func Badge(status domain.Status) string {
	label := StatusLabel(status)
	switch status {
	case domain.StatusCompleted:
		return color.New(color.FgGreen, color.Bold).Sprint(label)
	case domain.StatusFailed:
		return color.New(color.FgRed, color.Bold).Sprint(label)
	case domain.StatusRunning:
		return color.New(color.FgCyan, color.Bold).Sprint(label)
	default:
		return color.New(color.FgYellow, color.Bold).Sprint(label)
	}
}

// PrintScreen writes a screen projection, as JSON in JSON mode.
func PrintScreen(s render.Screen) error {
	if jsonMode {
		return JSON(s)
	}

	if s.Error != "" {
		Error("%s", s.Error)
	}
	if s.JobID == "" {
		return nil
	}

	fmt.Fprintf(out, "%s  %s  %d%%\n", Badge(s.Status), faint.Sprint(s.JobID), s.Percent)
	if s.Message != "" {
		fmt.Fprintf(out, "  %s\n", s.Message)
	}
	if s.Failure != "" {
		red.Fprintf(out, "  %s\n", s.Failure)
	}
	if s.Document != nil {
		printDocument(s.Document)
	}
	if s.ShowDownload {
		fmt.Fprintln(out)
		KeyValue("Download Markdown", s.DownloadURL)
	}
	return nil
}

func printDocument(doc *render.DocumentView) {
	Section(fmt.Sprintf("%s (%d slides)", doc.SourceFilename, doc.SlideCount))

	for _, slide := range doc.Slides {
		bold.Fprintf(out, "Slide %d", slide.Key)
		if slide.Title != "" {
			fmt.Fprintf(out, ": %s", slide.Title)
		}
		fmt.Fprintln(out)

		for _, item := range slide.Items {
			fmt.Fprintf(out, "  • %s\n", item)
		}
		if slide.Notes != "" {
			fmt.Fprintf(out, "  %s %s\n", faint.Sprint("Notes:"), slide.Notes)
		}
		for _, img := range slide.Images {
			fmt.Fprintf(out, "  ▣ %s\n", img.Name)
			if img.OCR != "" {
				fmt.Fprintf(out, "    %s %s\n", faint.Sprint("OCR:"), img.OCR)
			}
		}
		fmt.Fprintln(out)
	}
}
