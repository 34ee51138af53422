package pdf

import (
	"bytes"
	"fmt"

	lpdf "github.com/ledongthuc/pdf"
)

// LedongthucReader reads glyphs using the ledongthuc/pdf library
type LedongthucReader struct {
	reader *lpdf.Reader
}

// NewLedongthucReader parses data with ledongthuc/pdf
func NewLedongthucReader(data []byte) (reader *LedongthucReader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open PDF with ledongthuc: %v", r)
		}
	}()

	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with ledongthuc: %w", err)
	}

	return &LedongthucReader{reader: r}, nil
}

// Name returns the reader's library name
func (d *LedongthucReader) Name() string {
	return "ledongthuc"
}

// NumPage returns the number of pages the reader sees
func (d *LedongthucReader) NumPage() int {
	return d.reader.NumPage()
}

// Glyphs returns the shown glyphs of a page in content stream order
func (d *LedongthucReader) Glyphs(pageNumber int) (glyphs []Glyph, err error) {
	if pageNumber < 1 || pageNumber > d.reader.NumPage() {
		return nil, fmt.Errorf("invalid page number: %d", pageNumber)
	}

	// the content interpreter panics on malformed streams
	defer func() {
		if r := recover(); r != nil {
			glyphs = nil
			err = fmt.Errorf("failed to read content of page %d: %v", pageNumber, r)
		}
	}()

	page := d.reader.Page(pageNumber)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d not found", pageNumber)
	}

	content := page.Content()
	glyphs = make([]Glyph, 0, len(content.Text))
	for _, text := range content.Text {
		glyphs = append(glyphs, Glyph{
			Font:     text.Font,
			FontSize: text.FontSize,
			X:        text.X,
			Y:        text.Y,
			W:        text.W,
			S:        text.S,
		})
	}

	return glyphs, nil
}
