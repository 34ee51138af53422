package pdf

import (
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
)

// TextRun is a contiguous piece of text drawn with one font at one size on one
// baseline, in the order the page's content stream shows it.
type TextRun struct {
	// Index is the run's position in the page's extraction order
	Index int `json:"index"`
	Text  string `json:"text"`
	// Transform is [size 0 0 size x y]; (x, y) is the baseline origin in content
	// space, measured from the MediaBox lower-left corner
	Transform coords.Matrix `json:"transform"`
	// Width is the advance of the whole run in content units, 0 when unknown
	Width float64 `json:"width"`
	Font  string  `json:"font"`
}

// FontSize returns the run's font size in points
func (r TextRun) FontSize() float64 {
	return r.Transform[0]
}

// Anchor returns the baseline origin in content space
func (r TextRun) Anchor() coords.Point {
	return r.Transform.Origin()
}

// BBox returns the run's box in content space (bottom-left origin).
// The box spans one font size above the baseline.
func (r TextRun) BBox() BoundingBox {
	a := r.Anchor()
	return BoundingBox{X0: a.X, Y0: a.Y, X1: a.X + r.Width, Y1: a.Y + r.FontSize()}
}

// Glyph is a single shown character as reported by a text reader.
type Glyph struct {
	Font     string
	FontSize float64
	X        float64
	Y        float64
	W        float64
	S        string
}

// BoundingBox represents a rectangular area with coordinates
type BoundingBox struct {
	X0 float64 // Left
	Y0 float64 // Bottom
	X1 float64 // Right
	Y1 float64 // Top
}

// Width returns the width of the bounding box
func (b BoundingBox) Width() float64 {
	return b.X1 - b.X0
}

// Height returns the height of the bounding box
func (b BoundingBox) Height() float64 {
	return b.Y1 - b.Y0
}

// RunOption configures how glyphs are grouped into runs
type RunOption func(*runConfig)

type runConfig struct {
	// gaps wider than SpaceFactor*size become a space inside the run
	SpaceFactor float64
	// gaps wider than SplitFactor*size start a new run
	SplitFactor float64
	// baseline shifts beyond YTolerance*size start a new run
	YTolerance float64
}

func defaultRunConfig() *runConfig {
	return &runConfig{
		SpaceFactor: 0.15,
		SplitFactor: 2.0,
		YTolerance:  0.2,
	}
}

// WithSpaceFactor sets the gap, in ems, that is read as a word space
func WithSpaceFactor(f float64) RunOption {
	return func(c *runConfig) {
		c.SpaceFactor = f
	}
}

// WithSplitFactor sets the gap, in ems, that ends a run
func WithSplitFactor(f float64) RunOption {
	return func(c *runConfig) {
		c.SplitFactor = f
	}
}

// WithYTolerance sets the baseline shift, in ems, tolerated within one run
func WithYTolerance(f float64) RunOption {
	return func(c *runConfig) {
		c.YTolerance = f
	}
}
