package session

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pyhub-apps/pdfoverlay-golang/internal/testpdf"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/overlay"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/render"
)

// fakeRenderer skips rasterization and lets tests intercept a render
type fakeRenderer struct {
	mu   sync.Mutex
	hook func(ctx context.Context, page int) error
}

func (f *fakeRenderer) setHook(hook func(ctx context.Context, page int) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

func (f *fakeRenderer) Render(ctx context.Context, page pdf.Page, scale float64, dst *render.Surface) (coords.RenderState, error) {
	f.mu.Lock()
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, page.GetPageNumber()); err != nil {
			return coords.RenderState{}, err
		}
	}
	rs := coords.NewRenderState(page.Size(), scale)
	dst.Image = image.NewRGBA(image.Rect(0, 0, int(rs.Canvas.Width), int(rs.Canvas.Height)))
	return rs, nil
}

func twoPages() []byte {
	return testpdf.Build(
		testpdf.Letter(
			testpdf.Text{X: 72, Y: 700, Size: 12, S: "Ola"},
			testpdf.Text{X: 72, Y: 600, Size: 12, S: "Mundo"},
		),
		testpdf.Letter(testpdf.Text{X: 72, Y: 700, Size: 12, S: "Second"}),
	)
}

func openSession(t *testing.T) (*Session, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{}
	s := New(Options{Renderer: r})
	if err := s.Open(context.Background(), twoPages()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return s, r
}

func mustDispatch(t *testing.T, s *Session, events ...overlay.Event) {
	t.Helper()
	for _, ev := range events {
		if err := s.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%v) error: %v", ev.Kind, err)
		}
	}
}

func edit(index int, text string) []overlay.Event {
	return []overlay.Event{
		{Kind: overlay.Activate, Index: index},
		{Kind: overlay.Input, Text: text},
	}
}

func TestOpenShowsFirstPage(t *testing.T) {
	s, _ := openSession(t)

	info := s.Info()
	if info.Page != 1 || info.PageCount != 2 || info.Scale != DefaultScale {
		t.Errorf("Info() = %+v", info)
	}

	regions := s.Regions()
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[0].Text != "Ola" || regions[0].Page != 1 {
		t.Errorf("region 0 = %+v", regions[0])
	}
	if regions[0].Rect.X != 108 || regions[0].Rect.Y != 120 {
		t.Errorf("region 0 rect = %+v, want origin (108, 120)", regions[0].Rect)
	}

	rs, err := s.RenderState()
	if err != nil {
		t.Fatalf("RenderState() error: %v", err)
	}
	if rs.Canvas.Width != 918 || rs.Canvas.Height != 1188 {
		t.Errorf("canvas = %+v", rs.Canvas)
	}
	if s.Surface() == nil || s.Surface().Bounds().Dx() != 918 {
		t.Error("surface not set")
	}
}

func TestNavigation(t *testing.T) {
	s, _ := openSession(t)
	ctx := context.Background()

	if err := s.NextPage(ctx); err != nil {
		t.Fatalf("NextPage() error: %v", err)
	}
	if s.Info().Page != 2 || s.Regions()[0].Text != "Second" {
		t.Errorf("after next: %+v", s.Info())
	}

	if err := s.NextPage(ctx); !errors.Is(err, ErrPageRange) {
		t.Errorf("NextPage() past the end: %v", err)
	}
	if s.Info().Page != 2 {
		t.Errorf("page = %d after failed next", s.Info().Page)
	}

	if err := s.PrevPage(ctx); err != nil {
		t.Fatalf("PrevPage() error: %v", err)
	}
	if err := s.PrevPage(ctx); !errors.Is(err, ErrPageRange) {
		t.Errorf("PrevPage() before the start: %v", err)
	}
	if err := s.ShowPage(ctx, 0); !errors.Is(err, ErrPageRange) {
		t.Errorf("ShowPage(0): %v", err)
	}
	if s.Info().Page != 1 {
		t.Errorf("page = %d, want 1", s.Info().Page)
	}
}

func TestPageSwitchCommitsPendingEdit(t *testing.T) {
	s, _ := openSession(t)
	ctx := context.Background()

	mustDispatch(t, s, edit(0, "Adeus")...)
	if err := s.NextPage(ctx); err != nil {
		t.Fatalf("NextPage() error: %v", err)
	}

	recs := s.Edits()[1]
	if len(recs) != 1 || recs[0].Text != "Adeus" || recs[0].Original != "Ola" {
		t.Fatalf("page 1 edits = %+v", recs)
	}

	if err := s.ShowPage(ctx, 1); err != nil {
		t.Fatalf("ShowPage(1) error: %v", err)
	}
	r := s.Regions()[0]
	if r.Text != "Adeus" || r.Original != "Ola" {
		t.Errorf("re-shown region = %+v", r)
	}
	if s.Info().Edits != 1 {
		t.Errorf("Edits = %d, want 1", s.Info().Edits)
	}
}

func TestCancelOnRevisitedPageKeepsRecord(t *testing.T) {
	s, _ := openSession(t)
	ctx := context.Background()

	mustDispatch(t, s, edit(0, "Adeus")...)
	mustDispatch(t, s, overlay.Event{Kind: overlay.Confirm})
	if err := s.NextPage(ctx); err != nil {
		t.Fatalf("NextPage() error: %v", err)
	}
	if err := s.PrevPage(ctx); err != nil {
		t.Fatalf("PrevPage() error: %v", err)
	}

	mustDispatch(t, s, edit(0, "typo")...)
	mustDispatch(t, s, overlay.Event{Kind: overlay.Cancel})

	// the display falls back to the extracted text, the record is untouched
	if r := s.Regions()[0]; r.Text != "Ola" {
		t.Errorf("display = %q, want original", r.Text)
	}
	recs := s.Edits()[1]
	if len(recs) != 1 || recs[0].Text != "Adeus" {
		t.Errorf("page 1 edits = %+v", recs)
	}
}

func TestSaveCommitsPendingEdit(t *testing.T) {
	s, _ := openSession(t)

	mustDispatch(t, s, edit(0, "Adeus")...)
	if !s.Info().Editing {
		t.Fatal("expected a region in editing state")
	}

	out, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if s.Info().Editing || s.Info().Edits != 1 {
		t.Errorf("after save: %+v", s.Info())
	}

	doc, err := pdf.Load(out)
	if err != nil {
		t.Fatalf("Failed to load saved document: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Errorf("page count = %d", doc.PageCount())
	}
	page, _ := doc.Page(1)
	runs, err := page.TextRuns()
	if err != nil {
		t.Fatalf("TextRuns() error: %v", err)
	}
	found := false
	for _, run := range runs {
		if run.Text == "Adeus" {
			found = true
		}
	}
	if !found {
		t.Errorf("replacement text not found in %d runs", len(runs))
	}
}

func TestSaveOnOffsetMediaBox(t *testing.T) {
	// MediaBox [0 9 612 801]: the glyph drawn at y=700 sits 691pt above the box bottom
	data := testpdf.Build(testpdf.Page{
		Width: 612, Height: 792, Y0: 9,
		Texts: []testpdf.Text{{X: 72, Y: 700, Size: 12, S: "Ola"}},
	})

	s := New(Options{Renderer: &fakeRenderer{}})
	ctx := context.Background()
	if err := s.Open(ctx, data); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	// 1188 - 691*1.5 - 18
	if r := s.Regions()[0].Rect; r.X != 108 || r.Y != 133.5 {
		t.Errorf("region rect = %+v, want origin (108, 133.5)", r)
	}

	mustDispatch(t, s, edit(0, "Adeus")...)
	out, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	doc, err := pdf.Load(out)
	if err != nil {
		t.Fatalf("Failed to load saved document: %v", err)
	}
	page, _ := doc.Page(1)
	runs, err := page.TextRuns()
	if err != nil {
		t.Fatalf("TextRuns() error: %v", err)
	}

	// the replacement is inset into the mask over the original run, 691..703
	for _, run := range runs {
		if run.Text != "Adeus" {
			continue
		}
		a := run.Anchor()
		if math.Abs(a.X-(72+612.0/918*2)) > 0.01 || math.Abs(a.Y-692.8) > 0.01 {
			t.Errorf("replacement anchor = %+v, want (73.33, 692.8)", a)
		}
		return
	}
	t.Errorf("replacement text not found in %d runs", len(runs))
}

func TestSaveReleasedLayer(t *testing.T) {
	s, _ := openSession(t)
	mustDispatch(t, s, edit(0, "Adeus")...)

	s.mu.Lock()
	s.layer.Discard()
	s.mu.Unlock()

	out, err := s.Save(context.Background())
	if !errors.Is(err, ErrSave) || !errors.Is(err, overlay.ErrReleased) {
		t.Fatalf("Save() error = %v, want ErrSave wrapping ErrReleased", err)
	}
	if out != nil {
		t.Error("no bytes expected on failure")
	}
}

func TestSaveWithoutEdits(t *testing.T) {
	s, _ := openSession(t)

	out, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	doc, err := pdf.Load(out)
	if err != nil {
		t.Fatalf("Failed to load saved document: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Errorf("page count = %d", doc.PageCount())
	}
}

func TestOpenFailureKeepsState(t *testing.T) {
	s, _ := openSession(t)
	mustDispatch(t, s, edit(1, "World")...)
	mustDispatch(t, s, overlay.Event{Kind: overlay.Confirm})

	if err := s.Open(context.Background(), []byte("not a pdf")); !errors.Is(err, ErrLoad) {
		t.Fatalf("Open() error = %v, want ErrLoad", err)
	}

	info := s.Info()
	if info.Page != 1 || info.PageCount != 2 || info.Edits != 1 {
		t.Errorf("Info() = %+v", info)
	}
}

func TestOpenDropsEdits(t *testing.T) {
	s, _ := openSession(t)
	mustDispatch(t, s, edit(0, "Adeus")...)
	mustDispatch(t, s, overlay.Event{Kind: overlay.Confirm})
	mustDispatch(t, s, edit(1, "pending")...)

	other := testpdf.Build(testpdf.Letter(testpdf.Text{X: 72, Y: 700, Size: 12, S: "Fresh"}))
	if err := s.Open(context.Background(), other); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	info := s.Info()
	if info.Edits != 0 || info.Editing || info.PageCount != 1 {
		t.Errorf("Info() = %+v", info)
	}
	if s.Regions()[0].Text != "Fresh" {
		t.Errorf("regions = %+v", s.Regions())
	}
}

func TestRenderFailureKeepsPage(t *testing.T) {
	s, r := openSession(t)
	before := s.Surface()

	r.setHook(func(ctx context.Context, page int) error {
		if page == 2 {
			return errors.New("broken page")
		}
		return nil
	})

	if err := s.NextPage(context.Background()); !errors.Is(err, ErrRender) {
		t.Fatalf("NextPage() error = %v, want ErrRender", err)
	}
	if s.Info().Page != 1 || s.Regions()[0].Text != "Ola" {
		t.Errorf("page 1 not kept: %+v", s.Info())
	}
	if s.Surface() != before {
		t.Error("surface replaced after failed render")
	}
}

func TestReplacedDocumentMakesRenderStale(t *testing.T) {
	s, r := openSession(t)

	started := make(chan struct{})
	r.setHook(func(ctx context.Context, page int) error {
		if page != 2 {
			return nil
		}
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	showErr := make(chan error, 1)
	go func() { showErr <- s.ShowPage(context.Background(), 2) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("render did not start")
	}

	other := testpdf.Build(testpdf.Letter(testpdf.Text{X: 72, Y: 700, Size: 12, S: "Fresh"}))
	openErr := make(chan error, 1)
	go func() { openErr <- s.Open(context.Background(), other) }()

	select {
	case err := <-showErr:
		if !errors.Is(err, ErrStale) {
			t.Errorf("ShowPage() error = %v, want ErrStale", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stale render did not finish")
	}
	if err := <-openErr; err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	info := s.Info()
	if info.PageCount != 1 || info.Page != 1 || s.Regions()[0].Text != "Fresh" {
		t.Errorf("Info() = %+v", info)
	}
}

func TestNoDocument(t *testing.T) {
	s := New(Options{Renderer: &fakeRenderer{}})
	ctx := context.Background()

	if err := s.ShowPage(ctx, 1); !errors.Is(err, ErrNoDocument) {
		t.Errorf("ShowPage() error = %v", err)
	}
	if err := s.Dispatch(overlay.Event{Kind: overlay.Activate}); !errors.Is(err, ErrNoDocument) {
		t.Errorf("Dispatch() error = %v", err)
	}
	if _, err := s.Save(ctx); !errors.Is(err, ErrNoDocument) {
		t.Errorf("Save() error = %v", err)
	}
	if _, err := s.RenderState(); !errors.Is(err, coords.ErrNoRenderState) {
		t.Errorf("RenderState() error = %v", err)
	}
	if s.Regions() != nil || s.Surface() != nil {
		t.Error("expected no regions and no surface")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestClose(t *testing.T) {
	s, _ := openSession(t)
	mustDispatch(t, s, edit(0, "gone")...)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if info := s.Info(); info.PageCount != 0 || info.Edits != 0 || info.Editing {
		t.Errorf("Info() after close = %+v", info)
	}
	if _, err := s.Save(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Errorf("Save() after close: %v", err)
	}
}
