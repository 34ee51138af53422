// Package extractors turns a page's text runs into overlay region descriptors
// positioned in viewport pixels.
package extractors

import (
	"fmt"
	"math"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
)

// Minimum extents of a region, in pixels
const (
	MinFontPx = 8.0
	MinWidth  = 4.0
	MinHeight = 4.0
)

// Region describes where a text run sits on the rendered page
type Region struct {
	Index  int         `json:"index"`
	Text   string      `json:"text"`
	Rect   coords.Rect `json:"rect"`
	FontPx float64     `json:"font_px"`
}

// RegionExtractor maps runs onto the viewport
type RegionExtractor struct {
	minFontPx float64 // smallest font size a region is displayed with
	minWidth  float64
	minHeight float64
}

// NewRegionExtractor creates a region extractor with the default minimum extents
func NewRegionExtractor() *RegionExtractor {
	return &RegionExtractor{
		minFontPx: MinFontPx,
		minWidth:  MinWidth,
		minHeight: MinHeight,
	}
}

// SetMinimums overrides the minimum font size, width and height
func (re *RegionExtractor) SetMinimums(fontPx, width, height float64) {
	re.minFontPx = fontPx
	re.minWidth = width
	re.minHeight = height
}

// Extract returns one region per run, in run order. Nothing is filtered out,
// whitespace-only runs become regions as well.
func (re *RegionExtractor) Extract(runs []pdf.TextRun, rs coords.RenderState) ([]Region, error) {
	if !rs.Valid() {
		return nil, coords.ErrNoRenderState
	}

	regions := make([]Region, len(runs))
	for i, run := range runs {
		origin, fontPx := coords.ContentToViewport(run.Anchor(), run.FontSize(), rs.Scale, rs.Viewport.Height)
		if math.IsNaN(origin.X) || math.IsNaN(origin.Y) {
			return nil, fmt.Errorf("run %d has no usable position", i)
		}

		width := run.Width * rs.Scale
		if run.Width <= 0 {
			width = coords.EstimateWidth(run.Text, fontPx)
		}

		regions[i] = Region{
			Index: i,
			Text:  run.Text,
			Rect: coords.Rect{
				X:      origin.X,
				Y:      origin.Y,
				Width:  math.Max(re.minWidth, width),
				Height: math.Max(re.minHeight, fontPx),
			},
			FontPx: math.Max(re.minFontPx, fontPx),
		}
	}

	return regions, nil
}

// Extract maps runs with the default minimum extents
func Extract(runs []pdf.TextRun, rs coords.RenderState) ([]Region, error) {
	return NewRegionExtractor().Extract(runs, rs)
}
