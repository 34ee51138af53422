package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrNoPages is returned for documents without a single page
var ErrNoPages = errors.New("document has no pages")

// PDFDocument implements the Document interface. Page geometry comes from
// pdfcpu, text runs from the first glyph reader that can open the bytes.
type PDFDocument struct {
	ctx     *model.Context
	data    []byte
	glyphs  GlyphReader
	pages   []*PDFCPUPage
	runOpts []RunOption
	logger  *slog.Logger
}

// LoadOption configures Load
type LoadOption func(*loadConfig)

type loadConfig struct {
	Readers []func([]byte) (GlyphReader, error)
	RunOpts []RunOption
	Logger  *slog.Logger
}

// WithGlyphReaders replaces the default reader chain (ledongthuc, dslipak, then pdfcpu)
func WithGlyphReaders(readers ...func([]byte) (GlyphReader, error)) LoadOption {
	return func(c *loadConfig) {
		c.Readers = readers
	}
}

// WithRunOptions passes grouping options to every page's TextRuns
func WithRunOptions(opts ...RunOption) LoadOption {
	return func(c *loadConfig) {
		c.RunOpts = append(c.RunOpts, opts...)
	}
}

// WithLogger sets the logger used for reader fallbacks
func WithLogger(logger *slog.Logger) LoadOption {
	return func(c *loadConfig) {
		c.Logger = logger
	}
}

// DefaultGlyphReaders returns the reader chain used when none is configured
func DefaultGlyphReaders() []func([]byte) (GlyphReader, error) {
	return []func([]byte) (GlyphReader, error){
		func(data []byte) (GlyphReader, error) { return NewLedongthucReader(data) },
		func(data []byte) (GlyphReader, error) { return NewDsliPakReader(data) },
		func(data []byte) (GlyphReader, error) { return NewPDFCPUReader(data) },
	}
}

// Load parses PDF bytes. The bytes are retained and returned by Bytes.
func Load(data []byte, opts ...LoadOption) (Document, error) {
	config := &loadConfig{Readers: DefaultGlyphReaders()}
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, err := ReadContext(data)
	if err != nil {
		return nil, err
	}

	if ctx.PageCount < 1 {
		return nil, ErrNoPages
	}

	doc := &PDFDocument{
		ctx:     ctx,
		data:    data,
		runOpts: config.RunOpts,
		logger:  config.Logger,
	}

	var readErrs []error
	for _, open := range config.Readers {
		r, err := open(data)
		if err != nil {
			readErrs = append(readErrs, err)
			continue
		}
		if r.NumPage() != ctx.PageCount {
			readErrs = append(readErrs, fmt.Errorf("%s sees %d pages, expected %d", r.Name(), r.NumPage(), ctx.PageCount))
			continue
		}
		doc.glyphs = r
		break
	}
	if doc.glyphs == nil {
		return nil, fmt.Errorf("failed to open text reader: %w", errors.Join(readErrs...))
	}
	if len(readErrs) > 0 {
		doc.logger.Warn("text reader fallback", "reader", doc.glyphs.Name(), "error", errors.Join(readErrs...))
	}

	// Initialize pages
	if err := doc.initializePages(); err != nil {
		return nil, fmt.Errorf("failed to initialize pages: %w", err)
	}

	return doc, nil
}

// ReadContext parses and validates PDF bytes with pdfcpu in relaxed mode
func ReadContext(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}

	return ctx, nil
}

// initializePages initializes all pages in the document
func (d *PDFDocument) initializePages() error {
	pageCount := d.ctx.PageCount
	d.pages = make([]*PDFCPUPage, pageCount)

	for i := 1; i <= pageCount; i++ {
		page, err := NewPDFCPUPage(d.ctx, i)
		if err != nil {
			return fmt.Errorf("failed to create page %d: %w", i, err)
		}
		page.doc = d
		d.pages[i-1] = page
	}

	return nil
}

// Page returns a specific page by number (1-based)
func (d *PDFDocument) Page(number int) (Page, error) {
	if number < 1 || number > len(d.pages) {
		return nil, fmt.Errorf("page number %d out of range [1, %d]", number, len(d.pages))
	}
	return d.pages[number-1], nil
}

// PageCount returns the total number of pages
func (d *PDFDocument) PageCount() int {
	return len(d.pages)
}

// Bytes returns the bytes the document was loaded from
func (d *PDFDocument) Bytes() []byte {
	return d.data
}

// Title returns the document title from the info dictionary, if any
func (d *PDFDocument) Title() string {
	if d.ctx == nil || d.ctx.Info == nil {
		return ""
	}
	info, err := d.ctx.DereferenceDict(*d.ctx.Info)
	if err != nil {
		return ""
	}
	return getStringFromDict(info, "Title")
}

// Close releases resources associated with the document
func (d *PDFDocument) Close() error {
	d.ctx = nil
	d.pages = nil
	d.glyphs = nil
	return nil
}

func (d *PDFDocument) textRuns(pageNumber int) ([]TextRun, error) {
	if d.glyphs == nil {
		return nil, fmt.Errorf("document is closed")
	}
	glyphs, err := d.glyphs.Glyphs(pageNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to read glyphs: %w", err)
	}
	return GroupRuns(glyphs, d.runOpts...), nil
}

// Helper functions

func getStringFromDict(dict types.Dict, key string) string {
	if dict == nil {
		return ""
	}

	obj := dict[key]
	if obj == nil {
		return ""
	}

	switch v := obj.(type) {
	case types.StringLiteral:
		return string(v)
	case types.HexLiteral:
		return string(v)
	default:
		return ""
	}
}
