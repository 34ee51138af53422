package pdf

import (
	"bytes"
	"fmt"

	gopdf "github.com/dslipak/pdf"
)

// DsliPakReader reads glyphs using the dslipak/pdf library.
// It is the fallback when ledongthuc/pdf cannot open a document.
type DsliPakReader struct {
	reader *gopdf.Reader
}

// NewDsliPakReader parses data with dslipak/pdf
func NewDsliPakReader(data []byte) (reader *DsliPakReader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open PDF with dslipak: %v", r)
		}
	}()

	r, err := gopdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with dslipak: %w", err)
	}

	return &DsliPakReader{reader: r}, nil
}

func (d *DsliPakReader) Name() string {
	return "dslipak"
}

func (d *DsliPakReader) NumPage() int {
	return d.reader.NumPage()
}

// Glyphs returns the shown glyphs of a page in content stream order
func (d *DsliPakReader) Glyphs(pageNumber int) (glyphs []Glyph, err error) {
	if pageNumber < 1 || pageNumber > d.reader.NumPage() {
		return nil, fmt.Errorf("invalid page number: %d", pageNumber)
	}

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
