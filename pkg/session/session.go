// Package session owns one editing session: the loaded document, the
// displayed page with its overlay, and the committed edits.
//
// Field access is guarded by a state mutex. Rendering and saving are also
// serialized by an operation mutex, so a save never overlaps a render. Opening
// a document bumps a generation counter and cancels work started for the
// previous one; results of such work come back as ErrStale.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/edits"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/extractors"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/overlay"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/render"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/reserialize"
)

var (
	ErrLoad       = errors.New("failed to load document")
	ErrRender     = errors.New("failed to render page")
	ErrSave       = errors.New("failed to save document")
	ErrNoDocument = errors.New("no document loaded")
	ErrStale      = errors.New("document was replaced while the operation ran")
	ErrPageRange  = errors.New("page out of range")
)

// DefaultScale is the render scale used when none is configured
const DefaultScale = 1.5

// Renderer rasterizes a page into a surface
type Renderer interface {
	Render(ctx context.Context, page pdf.Page, scale float64, dst *render.Surface) (coords.RenderState, error)
}

// Loader parses document bytes
type Loader func(data []byte) (pdf.Document, error)

// Options configures a Session. Zero fields take defaults.
type Options struct {
	Scale    float64
	Logger   *slog.Logger
	Loader   Loader
	Renderer Renderer
	Backend  reserialize.Backend
}

// Info summarizes the session for display
type Info struct {
	Page      int     `json:"page"`
	PageCount int     `json:"page_count"`
	Scale     float64 `json:"scale"`
	Edits     int     `json:"edits"`
	Editing   bool    `json:"editing"`
}

// Session is safe for concurrent use
type Session struct {
	// opMu serializes render and save
	opMu sync.Mutex

	mu      sync.Mutex
	doc     pdf.Document
	gen     uint64
	docCtx  context.Context
	cancel  context.CancelFunc
	page    int
	rs      coords.RenderState
	layer   *overlay.Layer
	surface *render.Surface
	store   *edits.Store

	scale    float64
	logger   *slog.Logger
	loader   Loader
	renderer Renderer
	engine   *reserialize.Engine
}

// New creates a session without a document
func New(opts Options) *Session {
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Loader == nil {
		logger := opts.Logger
		opts.Loader = func(data []byte) (pdf.Document, error) {
			return pdf.Load(data, pdf.WithLogger(logger))
		}
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewRasterizer()
	}
	if opts.Backend == nil {
		opts.Backend = reserialize.NewPDFCPU(opts.Logger)
	}

	return &Session{
		store:    edits.NewStore(),
		scale:    opts.Scale,
		logger:   opts.Logger,
		loader:   opts.Loader,
		renderer: opts.Renderer,
		engine:   reserialize.NewEngine(opts.Backend, opts.Logger),
	}
}

// Open replaces the current document with data and displays its first page.
// On a load failure the previous document stays in place. Pending and
// committed edits of the previous document are dropped.
func (s *Session) Open(ctx context.Context, data []byte) error {
	doc, err := s.loader(data)
	if err != nil {
		s.logger.Error("failed to load document", "error", err, "bytes", len(data))
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.layer != nil {
		s.layer.Discard()
		s.layer = nil
	}
	// the previous document is not closed, a stale render may still read it
	s.gen++
	s.docCtx, s.cancel = context.WithCancel(context.Background())
	s.doc = doc
	s.page = 0
	s.rs = coords.RenderState{}
	s.surface = nil
	s.store.Clear()
	gen := s.gen
	s.mu.Unlock()

	s.logger.Info("document loaded", "pages", doc.PageCount(), "generation", gen)

	return s.ShowPage(ctx, 1)
}

// ShowPage renders page n and rebuilds the overlay for it. A pending edit on
// the previous page is committed once the new page is ready. When rendering
// fails the previous page stays displayed.
func (s *Session) ShowPage(ctx context.Context, n int) error {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if n < 1 || n > s.doc.PageCount() {
		count := s.doc.PageCount()
		s.mu.Unlock()
		return fmt.Errorf("%w: %d not in [1, %d]", ErrPageRange, n, count)
	}
	doc, gen, docCtx, scale := s.doc, s.gen, s.docCtx, s.scale
	s.mu.Unlock()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(docCtx, cancel)
	defer stop()

	surface := render.NewSurface()
	rs, regions, err := s.layout(opCtx, doc, n, scale, surface)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return ErrStale
	}
	if err != nil {
		s.logger.Error("failed to render page", "page", n, "error", err)
		return fmt.Errorf("%w %d: %w", ErrRender, n, err)
	}

	if s.layer != nil {
		s.layer.Release()
	}
	s.layer = overlay.NewLayer(n, regions, overlay.CommitFunc(s.store.Upsert))
	if committed := s.store.All()[n]; len(committed) > 0 {
		s.layer.ShowCommitted(committed)
	}
	s.page = n
	s.rs = rs
	s.surface = surface

	s.logger.Debug("page displayed", "page", n, "regions", len(regions), "canvas_width", rs.Canvas.Width, "canvas_height", rs.Canvas.Height)
	return nil
}

func (s *Session) layout(ctx context.Context, doc pdf.Document, n int, scale float64, surface *render.Surface) (coords.RenderState, []extractors.Region, error) {
	page, err := doc.Page(n)
	if err != nil {
		return coords.RenderState{}, nil, err
	}

	rs, err := s.renderer.Render(ctx, page, scale, surface)
	if err != nil {
		return coords.RenderState{}, nil, err
	}

	runs, err := page.TextRuns()
	if err != nil {
		return coords.RenderState{}, nil, err
	}

	regions, err := extractors.Extract(runs, rs)
	if err != nil {
		return coords.RenderState{}, nil, err
	}
	return rs, regions, nil
}

// NextPage displays the page after the current one
func (s *Session) NextPage(ctx context.Context) error {
	s.mu.Lock()
	n := s.page + 1
	s.mu.Unlock()
	return s.ShowPage(ctx, n)
}

// PrevPage displays the page before the current one
func (s *Session) PrevPage(ctx context.Context) error {
	s.mu.Lock()
	n := s.page - 1
	s.mu.Unlock()
	return s.ShowPage(ctx, n)
}

// Dispatch forwards an interaction event to the displayed page's overlay
func (s *Session) Dispatch(ev overlay.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.layer == nil {
		return ErrNoDocument
	}
	return s.layer.Handle(ev)
}

// Save commits any pending edit and returns the edited document.
// On failure no bytes are returned and the edits are kept.
func (s *Session) Save(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return nil, ErrNoDocument
	}
	if s.layer != nil {
		if err := s.layer.Blur(); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: failed to commit pending edit: %w", ErrSave, err)
		}
	}
	gen, docCtx, rs := s.gen, s.docCtx, s.rs
	src := s.doc.Bytes()
	coll := s.store.All()
	s.mu.Unlock()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(docCtx, cancel)
	defer stop()

	out, err := s.engine.Apply(opCtx, src, coll, rs)

	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()

	if stale {
		return nil, ErrStale
	}
	if err != nil {
		s.logger.Error("failed to save document", "error", err, "edits", coll.Len())
		return nil, fmt.Errorf("%w: %w", ErrSave, err)
	}

	s.logger.Info("document saved", "edits", coll.Len(), "pages", len(coll.Pages()), "bytes", len(out))
	return out, nil
}

// Info returns the current page, page count and edit counts
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{Page: s.page, Scale: s.scale, Edits: s.store.Len()}
	if s.doc != nil {
		info.PageCount = s.doc.PageCount()
	}
	if s.layer != nil {
		_, info.Editing = s.layer.Editing()
	}
	return info
}

// Edits returns a copy of the committed edits
func (s *Session) Edits() edits.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.All()
}

// Regions returns the overlay regions of the displayed page
func (s *Session) Regions() []overlay.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layer == nil {
		return nil
	}
	return s.layer.Regions()
}

// RenderState returns the render state of the displayed page
func (s *Session) RenderState() (coords.RenderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rs.Valid() {
		return coords.RenderState{}, coords.ErrNoRenderState
	}
	return s.rs, nil
}

// Surface returns the raster of the displayed page, nil before the first render
func (s *Session) Surface() *render.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Close drops the document and cancels outstanding work
func (s *Session) Close() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	// wait for a cancelled render or save to return
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.layer != nil {
		s.layer.Discard()
		s.layer = nil
	}
	s.gen++
	s.store.Clear()
	s.page = 0
	s.rs = coords.RenderState{}
	s.surface = nil

	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}
