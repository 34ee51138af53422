package pdf

import (
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
)

// Document represents a loaded PDF together with the bytes it was loaded from
type Document interface {
	// PageCount returns the total number of pages
	PageCount() int

	// Page returns a page by number (1-based)
	Page(number int) (Page, error)

	// Bytes returns the original document bytes
	Bytes() []byte

	// Close releases resources associated with the document
	Close() error
}

// Page represents a single page in a PDF document
type Page interface {
	// GetPageNumber returns the page number (1-based)
	GetPageNumber() int

	// GetWidth returns the page width in points
	GetWidth() float64

	// GetHeight returns the page height in points
	GetHeight() float64

	// GetRotation returns the page rotation in degrees
	GetRotation() int

	// Size returns the natural page size in points
	Size() coords.Size

	// TextRuns returns the page's text runs in content stream order, anchored
	// relative to the MediaBox lower-left corner
	TextRuns() ([]TextRun, error)
}

// GlyphReader reads the shown glyphs of a page, page numbers are 1-based
type GlyphReader interface {
	NumPage() int
	Glyphs(pageNumber int) ([]Glyph, error)
	Name() string
}
