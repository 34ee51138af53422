// Package reserialize writes committed edits back into a PDF: every edited
// region is masked with an opaque white rectangle and the new text is drawn
// on top with a fixed substitute font.
package reserialize

import (
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/color"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
)

// Helvetica is the substitute font every replacement is drawn with
const Helvetica = "Helvetica"

// Backend loads documents for mutation
type Backend interface {
	Load(data []byte) (Document, error)
}

// Document is a mutable PDF
type Document interface {
	PageCount() int
	// Page returns a page by number (1-based)
	Page(number int) (Page, error)
	// Save serializes the document with every drawing applied
	Save(w io.Writer) error
}

// Page receives drawing operations in page space (points, origin bottom-left)
type Page interface {
	Size() coords.Size
	DrawRectangle(r coords.Rect, fill color.SimpleColor) error
	DrawText(text string, at coords.Point, style TextStyle) error
}

// TextStyle describes how replacement text is drawn
type TextStyle struct {
	Font string
	Size float64
	// MaxWidth limits the text to [at.X, at.X+MaxWidth], ignored when 0
	MaxWidth float64
	// Clip confines the text to a rectangle, usually the mask it sits on
	Clip *coords.Rect
}

// ClipRect returns the rectangle text drawn at `at` is confined to, or false
// when the text is not clipped at all.
func (s TextStyle) ClipRect(at coords.Point) (coords.Rect, bool) {
	if s.Clip == nil && s.MaxWidth <= 0 {
		return coords.Rect{}, false
	}

	var r coords.Rect
	if s.Clip != nil {
		r = *s.Clip
	} else {
		// unbounded vertically
		r = coords.Rect{X: at.X, Y: at.Y - 2*s.Size, Width: s.MaxWidth, Height: 4 * s.Size}
	}

	if s.MaxWidth > 0 {
		right := at.X + s.MaxWidth
		if right < r.X+r.Width {
			r.Width = right - r.X
		}
	}
	if r.Width < 0 {
		r.Width = 0
	}
	return r, true
}
