package testutil

import "github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"

// TwoSlideDoc is a completed result with one text slide and one image slide.
func TwoSlideDoc() *domain.KnowledgeDoc {
	return &domain.KnowledgeDoc{
		SourceFilename: "deck.pptx",
		SlideCount:     2,
		Slides: []domain.SlideInfo{
			{
				SlideIndex: 1,
				Title:      "Intro",
				TextItems:  []string{"Hello"},
				Images:     []domain.ExtractedImageInfo{},
			},
			{
				SlideIndex: 2,
				TextItems:  []string{},
				Images: []domain.ExtractedImageInfo{
					{ImageID: "i1", Filename: "media/img1.png", SlideIndex: 2, OCRText: "Q3 Revenue"},
				},
			},
		},
	}
}

// Running is a non-terminal snapshot.
func Running(jobID string, progress float64, message string) domain.JobStatus {
	return domain.JobStatus{JobID: jobID, Status: domain.StatusRunning, Progress: progress, Message: message}
}

// Completed is a terminal success snapshot carrying doc.
func Completed(jobID string, doc *domain.KnowledgeDoc) domain.JobStatus {
	return domain.JobStatus{JobID: jobID, Status: domain.StatusCompleted, Progress: 1, Message: "Done", Result: doc}
}

// Failed is a terminal failure snapshot.
func Failed(jobID, reason string) domain.JobStatus {
	return domain.JobStatus{JobID: jobID, Status: domain.StatusFailed, Progress: 1, Message: "Failed", Error: reason}
}
