// Package coords converts between the three coordinate spaces used by the editor:
// PDF content space (points, origin bottom-left), viewport space (pixels, origin
// top-left, scaled by the render factor) and page space at save time.
package coords

import (
	"errors"
	"math"

	"github.com/mattn/go-runewidth"
)

// ErrNoRenderState is returned when a conversion needs a render scale or canvas
// size and none has been established yet.
var ErrNoRenderState = errors.New("no page has been rendered")

// GlyphWidthFactor is the average glyph advance as a fraction of the font height.
// It is a heuristic, not font metrics.
const GlyphWidthFactor = 0.6

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Size represents a width/height pair
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether either extent is zero or negative
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is an axis-aligned rectangle given by its origin and extents.
// In viewport space the origin is the top-left corner, in page space the
// bottom-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Max returns the corner opposite to the origin
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Matrix is a PDF transformation matrix [a b c d e f].
type Matrix [6]float64

// Identity returns the identity matrix
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// FontMatrix returns the transform of a run drawn at size with its baseline origin at (x, y).
func FontMatrix(size, x, y float64) Matrix { return Matrix{size, 0, 0, size, x, y} }

// Transform applies the matrix to p
func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// Origin returns the translation part of the matrix
func (m Matrix) Origin() Point { return Point{X: m[4], Y: m[5]} }

// Mul returns m followed by n, the product m×n in PDF's row vector convention
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// ScaleX returns the length of the transformed unit x vector
func (m Matrix) ScaleX() float64 { return math.Hypot(m[0], m[1]) }

// ScaleY returns the length of the transformed unit y vector
func (m Matrix) ScaleY() float64 { return math.Hypot(m[2], m[3]) }

// RenderState describes the raster of the currently displayed page.
// Viewport is the exact scaled page size, Canvas the integer pixel size of the raster.
type RenderState struct {
	Scale    float64 `json:"scale"`
	Viewport Size    `json:"viewport"`
	Canvas   Size    `json:"canvas"`
}

// NewRenderState derives the render state of a page of the given size in points.
func NewRenderState(page Size, scale float64) RenderState {
	return RenderState{
		Scale:    scale,
		Viewport: Size{Width: page.Width * scale, Height: page.Height * scale},
		Canvas:   CanvasSize(page, scale),
	}
}

// Valid reports whether the state can be used for conversions
func (rs RenderState) Valid() bool {
	return rs.Scale > 0 && !rs.Viewport.Empty() && !rs.Canvas.Empty()
}

// CanvasSize returns the integer pixel size of a page rendered at scale.
func CanvasSize(page Size, scale float64) Size {
	return Size{
		Width:  math.Floor(page.Width * scale),
		Height: math.Floor(page.Height * scale),
	}
}

// ContentToViewport maps a run's baseline anchor to the top-left corner of its
// pixel box. The glyph height used for the y flip approximates the ascent by
// the full font size. It returns the pixel point and the font height in pixels.
func ContentToViewport(anchor Point, fontSize, scale, viewportHeight float64) (Point, float64) {
	fontPx := fontSize * scale
	return Point{
		X: anchor.X * scale,
		Y: viewportHeight - anchor.Y*scale - fontPx,
	}, fontPx
}

// Ratios returns the point-per-pixel ratios between a page and its canvas.
func Ratios(canvas, page Size) (float64, float64) {
	return page.Width / canvas.Width, page.Height / canvas.Height
}

// ViewportToPage maps a pixel rectangle measured on canvas into page space.
// The result's Y is the bottom edge of the rectangle.
func ViewportToPage(r Rect, canvas, page Size) Rect {
	rx, ry := Ratios(canvas, page)
	return Rect{
		X:      r.X * rx,
		Y:      page.Height - (r.Y+r.Height)*ry,
		Width:  r.Width * rx,
		Height: r.Height * ry,
	}
}

// EstimateWidth approximates the pixel width of text drawn at fontPx when the
// run carries no width of its own. East Asian wide characters count as two cells.
func EstimateWidth(text string, fontPx float64) float64 {
	return float64(runewidth.StringWidth(text)) * fontPx * GlyphWidthFactor
}
