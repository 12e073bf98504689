package render

import (
	"strconv"
	"strings"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
)

// Markdown renders doc in the same layout the backend uses for its download
// artifact, so a local export matches the server copy.
func Markdown(doc *domain.KnowledgeDoc) string {
	if doc == nil {
		return ""
	}

	view := Document(doc)
	var lines []string
	lines = append(lines, "# Knowledge Document: "+view.SourceFilename, "")

	for _, slide := range view.Slides {
		lines = append(lines, "## Slide "+strconv.Itoa(slide.Key))
		if slide.Title != "" {
			lines = append(lines, "**Title:** "+slide.Title)
		}
		if len(slide.Items) > 0 {
			lines = append(lines, "", "**Text:**")
			for _, item := range slide.Items {
				lines = append(lines, "- "+item)
			}
		}
		if slide.Notes != "" {
			lines = append(lines, "", "**Speaker Notes:**", slide.Notes)
		}
		if len(slide.Images) > 0 {
			lines = append(lines, "", "**Images:**")
			for _, img := range slide.Images {
				lines = append(lines, "- "+img.Name)
				if img.OCR != "" {
					lines = append(lines, "  - OCR: "+img.OCR)
				}
			}
		}
		lines = append(lines, "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n"
}

// Filename is the default artifact name for jobID.
func Filename(jobID string) string {
	return "knowledge_doc_" + jobID + ".md"
}
