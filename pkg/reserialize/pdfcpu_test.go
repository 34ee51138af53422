package reserialize

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/pyhub-apps/pdfoverlay-golang/internal/testpdf"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/edits"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/extractors"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
)

func TestPDFCPURoundTripWithoutEdits(t *testing.T) {
	src := testpdf.Build(
		testpdf.Letter(testpdf.Text{X: 72, Y: 700, Size: 12, S: "Ola"}),
		testpdf.Page{Width: 595, Height: 842},
		testpdf.Page{Width: 300, Height: 400},
	)

	out, err := NewEngine(NewPDFCPU(nil), nil).Apply(context.Background(), src, edits.Collection{}, letterAt15)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	doc, err := pdf.Load(out)
	if err != nil {
		t.Fatalf("Failed to load output: %v", err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("page count = %d, want 3", doc.PageCount())
	}

	want := []coords.Size{{Width: 612, Height: 792}, {Width: 595, Height: 842}, {Width: 300, Height: 400}}
	for i, size := range want {
		page, err := doc.Page(i + 1)
		if err != nil {
			t.Fatalf("Failed to get page %d: %v", i+1, err)
		}
		if page.Size() != size {
			t.Errorf("page %d size = %+v, want %+v", i+1, page.Size(), size)
		}
	}
}

func TestPDFCPUReplacesText(t *testing.T) {
	page := coords.Size{Width: 612, Height: 792}
	src := testpdf.Build(testpdf.Letter(
		testpdf.Text{X: 72, Y: 700, Size: 12, S: "Ola"},
		testpdf.Text{X: 72, Y: 600, Size: 12, S: "Keep"},
	))

	// lay the page out the way an editing session would
	in, err := pdf.Load(src)
	if err != nil {
		t.Fatalf("Failed to load PDF: %v", err)
	}
	p, _ := in.Page(1)
	runs, err := p.TextRuns()
	if err != nil {
		t.Fatalf("TextRuns() error: %v", err)
	}
	rs := coords.NewRenderState(page, 1.5)
	regions, err := extractors.Extract(runs, rs)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	store := edits.NewStore()
	store.Upsert(1, edits.Record{Index: 0, Text: "Adeus", Original: "Ola", Rect: regions[0].Rect})

	out, err := NewEngine(NewPDFCPU(nil), nil).Apply(context.Background(), src, store.All(), rs)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	doc, err := pdf.Load(out)
	if err != nil {
		t.Fatalf("Failed to load output: %v", err)
	}
	outPage, _ := doc.Page(1)
	if outPage.Size() != page {
		t.Errorf("size = %+v, want %+v", outPage.Size(), page)
	}

	outRuns, err := outPage.TextRuns()
	if err != nil {
		t.Fatalf("TextRuns() error: %v", err)
	}

	var texts []string
	var replacement *pdf.TextRun
	for i := range outRuns {
		texts = append(texts, outRuns[i].Text)
		if outRuns[i].Text == "Adeus" {
			replacement = &outRuns[i]
		}
	}
	if replacement == nil {
		t.Fatalf("replacement text not found in %q", texts)
	}
	if replacement.Font != Helvetica {
		t.Errorf("font = %q, want %s", replacement.Font, Helvetica)
	}
	if math.Abs(replacement.FontSize()-8.4) > 1e-3 {
		t.Errorf("font size = %v, want 8.4", replacement.FontSize())
	}
	a := replacement.Anchor()
	if math.Abs(a.X-(72+2*612.0/918.0)) > 1e-3 || math.Abs(a.Y-701.8) > 1e-3 {
		t.Errorf("anchor = %+v", a)
	}
	if !strings.Contains(strings.Join(texts, "|"), "Keep") {
		t.Errorf("untouched run missing from %q", texts)
	}
}

func TestPDFCPUInheritedMediaBox(t *testing.T) {
	src := testpdf.Doc{
		Pages:           []testpdf.Page{{Width: 300, Height: 400, Texts: []testpdf.Text{{X: 10, Y: 10, Size: 10, S: "hi"}}}},
		InheritMediaBox: true,
	}.Bytes()

	backend := NewPDFCPU(nil)
	doc, err := backend.Load(src)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	page, err := doc.Page(1)
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}
	if got := page.Size(); got.Width != 300 || got.Height != 400 {
		t.Errorf("Size() = %+v, want 300x400", got)
	}

	if err := page.DrawRectangle(coords.Rect{X: 5, Y: 5, Width: 20, Height: 12}, whiteFill()); err != nil {
		t.Fatalf("DrawRectangle() error: %v", err)
	}
	if err := page.DrawText("yo", coords.Point{X: 6, Y: 7}, TextStyle{Font: Helvetica, Size: 8}); err != nil {
		t.Fatalf("DrawText() error: %v", err)
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	out, err := pdf.Load(buf.Bytes())
	if err != nil {
		t.Fatalf("Failed to load output: %v", err)
	}
	p, _ := out.Page(1)
	runs, err := p.TextRuns()
	if err != nil {
		t.Fatalf("TextRuns() error: %v", err)
	}
	if len(runs) != 2 || runs[0].Text != "hi" || runs[1].Text != "yo" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestPDFCPUPageErrors(t *testing.T) {
	doc, err := NewPDFCPU(nil).Load(testpdf.Build(testpdf.Letter()))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, err := doc.Page(2); err == nil {
		t.Error("expected error for page 2")
	}

	page, _ := doc.Page(1)
	if err := page.DrawText("x", coords.Point{}, TextStyle{Font: "Times-Roman", Size: 10}); err == nil {
		t.Error("expected error for unsupported font")
	}
	if err := page.DrawText("x", coords.Point{}, TextStyle{Font: Helvetica}); err == nil {
		t.Error("expected error for zero font size")
	}
}

func TestPDFCPULoadInvalid(t *testing.T) {
	if _, err := NewPDFCPU(nil).Load([]byte("not a pdf")); err == nil {
		t.Error("expected load error")
	}
}
