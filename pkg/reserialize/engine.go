package reserialize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/color"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/edits"
)

// ErrSave wraps every failure to produce output bytes
var ErrSave = errors.New("failed to save document")

const (
	// MinFontSize is the smallest replacement font size, in points
	MinFontSize = 8.0
	// FontHeightRatio is the replacement font size as a fraction of the mask height
	FontHeightRatio = 0.7
	// TextInset is the horizontal padding inside a mask, in canvas pixels
	TextInset = 2.0
)

// Engine applies an edit collection to the original document bytes
type Engine struct {
	backend Backend
	logger  *slog.Logger
}

// NewEngine creates an engine drawing through backend. A nil logger uses slog.Default().
func NewEngine(backend Backend, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{backend: backend, logger: logger}
}

// Apply re-parses src, masks and redraws every record of coll and returns
// the new document. rs supplies the render scale the edits were made at;
// each page's canvas is derived from its own size and that scale.
// Pages outside the document are skipped with a warning.
func (e *Engine) Apply(ctx context.Context, src []byte, coll edits.Collection, rs coords.RenderState) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages := coll.Pages()
	if len(pages) > 0 && rs.Scale <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrSave, coords.ErrNoRenderState)
	}

	doc, err := e.backend.Load(src)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load document: %w", ErrSave, err)
	}

	for _, pageNr := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logCtx := e.logger.With("page", pageNr)
		if pageNr < 1 || pageNr > doc.PageCount() {
			logCtx.Warn("skipping edits for missing page", "page_count", doc.PageCount(), "edits", len(coll[pageNr]))
			continue
		}

		page, err := doc.Page(pageNr)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to get page %d: %w", ErrSave, pageNr, err)
		}

		if err := e.applyPage(page, coll[pageNr], rs.Scale); err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrSave, pageNr, err)
		}
		logCtx.Debug("applied edits", "edits", len(coll[pageNr]))
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return nil, fmt.Errorf("%w: failed to write document: %w", ErrSave, err)
	}

	return buf.Bytes(), nil
}

func (e *Engine) applyPage(page Page, records []edits.Record, scale float64) error {
	size := page.Size()
	canvas := coords.CanvasSize(size, scale)
	if size.Empty() || canvas.Empty() {
		return fmt.Errorf("page of size %vx%v has no canvas at scale %v", size.Width, size.Height, scale)
	}
	ratioX, _ := coords.Ratios(canvas, size)

	for _, rec := range records {
		mask := coords.ViewportToPage(rec.Rect, canvas, size)
		if err := page.DrawRectangle(mask, color.White); err != nil {
			return fmt.Errorf("failed to mask run %d: %w", rec.Index, err)
		}

		if rec.Text == "" {
			continue
		}

		fontSize := math.Max(MinFontSize, mask.Height*FontHeightRatio)
		at := coords.Point{
			X: mask.X + TextInset*ratioX,
			Y: mask.Y + (mask.Height-fontSize)/2,
		}
		style := TextStyle{
			Font:     Helvetica,
			Size:     fontSize,
			MaxWidth: mask.Width - 2*TextInset*ratioX,
			Clip:     &mask,
		}
		if style.MaxWidth <= 0 {
			e.logger.Debug("mask too narrow for text", "index", rec.Index, "width", mask.Width)
			continue
		}
		if err := page.DrawText(rec.Text, at, style); err != nil {
			return fmt.Errorf("failed to draw run %d: %w", rec.Index, err)
		}
	}

	return nil
}
