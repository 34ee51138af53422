// Package render rasterizes a page preview: a white page of the scaled size
// with every text run drawn at its position. Vector graphics and images are
// not rendered.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
)

// ErrInvalidScale is returned for a non-positive render scale
var ErrInvalidScale = errors.New("render scale must be positive")

// Surface is the raster a page is drawn into
type Surface struct {
	Image *image.RGBA
}

// NewSurface returns an empty surface
func NewSurface() *Surface {
	return &Surface{}
}

// Bounds returns the raster bounds, empty before the first render
func (s *Surface) Bounds() image.Rectangle {
	if s.Image == nil {
		return image.Rectangle{}
	}
	return s.Image.Bounds()
}

// EncodePNG writes the surface as PNG
func (s *Surface) EncodePNG(w io.Writer) error {
	if s.Image == nil {
		return errors.New("surface is empty")
	}
	return png.Encode(w, s.Image)
}

// Rasterizer draws page previews. Faces are cached per pixel size, so a
// Rasterizer must not be shared between goroutines.
type Rasterizer struct {
	font  *opentype.Font
	faces map[int]font.Face
}

// NewRasterizer creates a rasterizer using the Go regular font
func NewRasterizer() *Rasterizer {
	r := &Rasterizer{faces: make(map[int]font.Face)}
	if f, err := opentype.Parse(goregular.TTF); err == nil {
		r.font = f
	}
	return r
}

// Render draws page at scale into dst, resizing dst's raster to the canvas size.
// The returned state describes the raster just produced.
func (r *Rasterizer) Render(ctx context.Context, page pdf.Page, scale float64, dst *Surface) (coords.RenderState, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return coords.RenderState{}, ErrInvalidScale
	}
	if err := ctx.Err(); err != nil {
		return coords.RenderState{}, err
	}

	rs := coords.NewRenderState(page.Size(), scale)
	if !rs.Valid() {
		return coords.RenderState{}, fmt.Errorf("page %d has an empty canvas", page.GetPageNumber())
	}

	runs, err := page.TextRuns()
	if err != nil {
		return coords.RenderState{}, fmt.Errorf("failed to read text runs: %w", err)
	}

	// dst keeps its previous raster until the new one is complete
	bounds := image.Rect(0, 0, int(rs.Canvas.Width), int(rs.Canvas.Height))
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, image.White, image.Point{}, draw.Src)

	for i, run := range runs {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return coords.RenderState{}, err
			}
		}
		r.drawRun(img, run, rs)
	}

	dst.Image = img
	return rs, nil
}

func (r *Rasterizer) drawRun(img *image.RGBA, run pdf.TextRun, rs coords.RenderState) {
	px := run.FontSize() * rs.Scale
	if px <= 0 || run.Text == "" {
		return
	}
	anchor := run.Anchor()
	baseline := coords.Point{X: anchor.X * rs.Scale, Y: rs.Viewport.Height - anchor.Y*rs.Scale}

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: r.face(px),
		Dot:  fixed.Point26_6{X: fixed.Int26_6(baseline.X * 64), Y: fixed.Int26_6(baseline.Y * 64)},
	}
	d.DrawString(run.Text)
}

// face returns a cached face for a pixel size, rounded to half pixels
func (r *Rasterizer) face(px float64) font.Face {
	if r.font == nil {
		return basicfont.Face7x13
	}

	key := int(math.Round(px * 2))
	if key < 1 {
		key = 1
	}

	if f, ok := r.faces[key]; ok {
		return f
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(key) / 2,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	r.faces[key] = f
	return f
}

// Downscale returns img scaled to at most maxWidth pixels wide, keeping the aspect ratio.
// Images already narrow enough are returned unchanged.
func Downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := int(math.Round(float64(b.Dy()) * float64(maxWidth) / float64(b.Dx())))
	if h < 1 {
		h = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}
