package pdfoverlay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pyhub-apps/pdfoverlay-golang/internal/testpdf"
)

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.pdf")
	data := testpdf.Build(testpdf.Letter(testpdf.Text{X: 72, Y: 700, Size: 12, S: "Dummy PDF file"}))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenPDF(t *testing.T) {
	doc, err := Open(writePDF(t))
	if err != nil {
		t.Fatalf("Failed to open PDF: %v", err)
	}
	defer doc.Close()

	if doc.PageCount() != 1 {
		t.Errorf("Expected 1 page, got %d", doc.PageCount())
	}

	page, err := doc.Page(1)
	if err != nil {
		t.Fatalf("Failed to get page: %v", err)
	}
	if page.GetWidth() != 612 || page.GetHeight() != 792 {
		t.Errorf("Expected 612x792, got %vx%v", page.GetWidth(), page.GetHeight())
	}

	runs, err := page.TextRuns()
	if err != nil {
		t.Fatalf("TextRuns() error: %v", err)
	}
	if len(runs) != 1 || runs[0].Text != "Dummy PDF file" {
		t.Errorf("Unexpected runs: %+v", runs)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestOpenSessionEditAndSave(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSession(ctx, writePDF(t), Options{})
	if err != nil {
		t.Fatalf("OpenSession() error: %v", err)
	}
	defer s.Close()

	for _, ev := range []Event{
		{Kind: Activate, Index: 0},
		{Kind: Input, Text: "Edited"},
		{Kind: Confirm},
	} {
		if err := s.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch() error: %v", err)
		}
	}

	out, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if len(out) == 0 {
		t.Error("Save() returned no bytes")
	}
	if got := s.Edits()[1]; len(got) != 1 || got[0].Text != "Edited" {
		t.Errorf("Edits() = %+v", got)
	}
}

func TestOpenSessionErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	os.WriteFile(path, []byte("%PDF-1.4 broken"), 0o644)

	if _, err := OpenSession(context.Background(), path, Options{}); !errors.Is(err, ErrLoad) {
		t.Errorf("OpenSession() error = %v, want ErrLoad", err)
	}
	if err := NewSession(Options{}).ShowPage(context.Background(), 1); !errors.Is(err, ErrNoDocument) {
		t.Errorf("ShowPage() error = %v, want ErrNoDocument", err)
	}
}
