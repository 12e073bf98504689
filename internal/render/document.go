// Package render projects job state and knowledge documents into display
// trees. Everything here is a pure function of its input.
package render

import (
	"math"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
)

// ImageView is one extracted image line.
type ImageView struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	OCR  string `json:"ocr,omitempty"`
}

// SlideView is one slide. Empty fields are not rendered.
type SlideView struct {
	Key    int         `json:"key"`
	Title  string      `json:"title,omitempty"`
	Items  []string    `json:"items,omitempty"`
	Notes  string      `json:"notes,omitempty"`
	Images []ImageView `json:"images,omitempty"`
}

// DocumentView is the display tree of a knowledge document.
type DocumentView struct {
	SourceFilename string      `json:"source_filename"`
	SlideCount     int         `json:"slide_count"`
	Slides         []SlideView `json:"slides"`
}

// Document builds the display tree for doc, or nil when doc is nil.
// Slides keep the order of doc.Slides and are keyed by slide index;
// SlideCount is reported as sent even if it disagrees with the slides.
func Document(doc *domain.KnowledgeDoc) *DocumentView {
	if doc == nil {
		return nil
	}

	view := &DocumentView{
		SourceFilename: doc.SourceFilename,
		SlideCount:     doc.SlideCount,
		Slides:         make([]SlideView, 0, len(doc.Slides)),
	}
	for _, slide := range doc.Slides {
		view.Slides = append(view.Slides, slideView(slide))
	}
	return view
}

func slideView(slide domain.SlideInfo) SlideView {
	sv := SlideView{
		Key:   slide.SlideIndex,
		Title: slide.Title,
		Notes: slide.Notes,
	}
	if len(slide.TextItems) > 0 {
		sv.Items = append([]string(nil), slide.TextItems...)
	}
	if len(slide.Images) > 0 {
		sv.Images = make([]ImageView, 0, len(slide.Images))
		for _, img := range slide.Images {
			sv.Images = append(sv.Images, ImageView{
				Key:  img.ImageID,
				Name: img.DisplayName(),
				OCR:  img.OCRText,
			})
		}
	}
	return sv
}

// Percent converts progress in [0,1] to a whole percentage, rounding halves up
// and clamping out-of-range input to [0,100]. NaN is 0.
func Percent(progress float64) int {
	if math.IsNaN(progress) {
		return 0
	}
	p := math.Floor(progress*100 + 0.5)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}
