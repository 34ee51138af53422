// Package pdfoverlay edits the text of existing PDF documents: pages are laid
// out as editable regions over a rendered preview, and committed edits are
// written back by masking the original text and drawing the replacement.
package pdfoverlay

import (
	"context"
	"fmt"
	"os"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/edits"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/overlay"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/session"
)

// Re-export types for the public API
type (
	Document    = pdf.Document
	Page        = pdf.Page
	TextRun     = pdf.TextRun
	Session     = session.Session
	Options     = session.Options
	Info        = session.Info
	Event       = overlay.Event
	EventKind   = overlay.EventKind
	Region      = overlay.Region
	Record      = edits.Record
	Collection  = edits.Collection
	RenderState = coords.RenderState
)

// Re-export event kinds
const (
	Activate = overlay.Activate
	Input    = overlay.Input
	Confirm  = overlay.Confirm
	Cancel   = overlay.Cancel
	Blur     = overlay.Blur
)

// Re-export session errors
var (
	ErrLoad       = session.ErrLoad
	ErrRender     = session.ErrRender
	ErrSave       = session.ErrSave
	ErrNoDocument = session.ErrNoDocument
	ErrStale      = session.ErrStale
	ErrPageRange  = session.ErrPageRange
)

// Open reads a PDF file and returns a Document
func Open(filepath string) (pdf.Document, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return pdf.Load(data)
}

// NewSession creates an editing session without a document
func NewSession(opts Options) *Session {
	return session.New(opts)
}

// OpenSession reads a PDF file into a new session showing its first page
func OpenSession(ctx context.Context, filepath string, opts Options) (*Session, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	s := session.New(opts)
	if err := s.Open(ctx, data); err != nil {
		return nil, err
	}
	return s, nil
}
