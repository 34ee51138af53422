package reserialize

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/color"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/draw"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
)

// fontResourcePrefix names the substitute font inside a page's /Font resources
const fontResourcePrefix = "FEdit"

// PDFCPU is a Backend built on pdfcpu.
//
// Drawing is buffered per page. On Save the page's original content is
// wrapped in q/Q so its graphics state cannot leak into the new operators,
// and the new operators are appended after it.
type PDFCPU struct {
	Logger *slog.Logger
}

// NewPDFCPU creates a pdfcpu backend
func NewPDFCPU(logger *slog.Logger) *PDFCPU {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFCPU{Logger: logger}
}

// Load parses and validates data
func (b *PDFCPU) Load(data []byte) (Document, error) {
	ctx, err := pdf.ReadContext(data)
	if err != nil {
		return nil, err
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &pdfcpuDocument{
		ctx:    ctx,
		pages:  make(map[int]*pdfcpuPage),
		logger: logger,
	}, nil
}

type pdfcpuDocument struct {
	ctx     *model.Context
	pages   map[int]*pdfcpuPage
	fontRef *types.IndirectRef
	logger  *slog.Logger
}

func (d *pdfcpuDocument) PageCount() int {
	return d.ctx.PageCount
}

func (d *pdfcpuDocument) Page(number int) (Page, error) {
	if p, ok := d.pages[number]; ok {
		return p, nil
	}
	if number < 1 || number > d.ctx.PageCount {
		return nil, fmt.Errorf("page number %d out of range [1, %d]", number, d.ctx.PageCount)
	}

	pageDict, _, attrs, err := d.ctx.PageDict(number, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get page dict: %w", err)
	}
	if pageDict == nil {
		return nil, fmt.Errorf("page %d not found", number)
	}

	p := &pdfcpuPage{
		doc:    d,
		number: number,
		dict:   pageDict,
		size:   coords.Size{Width: 612, Height: 792},
	}
	if attrs != nil {
		if attrs.MediaBox != nil {
			p.origin = coords.Point{X: attrs.MediaBox.LL.X, Y: attrs.MediaBox.LL.Y}
			p.size = coords.Size{Width: attrs.MediaBox.Width(), Height: attrs.MediaBox.Height()}
		}
		p.inheritedRes = attrs.Resources
	}

	d.pages[number] = p
	return p, nil
}

// Save writes the document with every buffered page drawing applied
func (d *pdfcpuDocument) Save(w io.Writer) error {
	numbers := make([]int, 0, len(d.pages))
	for n, p := range d.pages {
		if p.ops.Len() > 0 {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		if err := d.pages[n].flush(); err != nil {
			return fmt.Errorf("failed to update page %d: %w", n, err)
		}
	}

	if err := api.WriteContext(d.ctx, w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// substituteFont returns the shared Helvetica font object, creating it once
func (d *pdfcpuDocument) substituteFont() (types.IndirectRef, error) {
	if d.fontRef != nil {
		return *d.fontRef, nil
	}
	fontDict := types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name(Helvetica),
		"Encoding": types.Name("WinAnsiEncoding"),
	}
	ref, err := d.ctx.IndRefForNewObject(fontDict)
	if err != nil {
		return types.IndirectRef{}, fmt.Errorf("failed to add font: %w", err)
	}
	d.fontRef = ref
	return *ref, nil
}

func (d *pdfcpuDocument) newStream(content []byte) (types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf(content)
	if err != nil {
		return types.IndirectRef{}, fmt.Errorf("failed to create stream: %w", err)
	}
	if err := sd.Encode(); err != nil {
		return types.IndirectRef{}, fmt.Errorf("failed to encode stream: %w", err)
	}
	ref, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return types.IndirectRef{}, fmt.Errorf("failed to add stream: %w", err)
	}
	return *ref, nil
}

type pdfcpuPage struct {
	doc          *pdfcpuDocument
	number       int
	dict         types.Dict
	inheritedRes types.Dict
	size         coords.Size
	// origin is the lower-left corner of the MediaBox
	origin  coords.Point
	ops     bytes.Buffer
	fontRes string
}

func (p *pdfcpuPage) Size() coords.Size {
	return p.size
}

func (p *pdfcpuPage) DrawRectangle(r coords.Rect, fill color.SimpleColor) error {
	x, y := p.origin.X+r.X, p.origin.Y+r.Y
	draw.FillRectNoBorder(&p.ops, types.NewRectangle(x, y, x+r.Width, y+r.Height), fill)
	p.ops.WriteByte('\n')
	return nil
}

func (p *pdfcpuPage) DrawText(text string, at coords.Point, style TextStyle) error {
	if style.Font != "" && style.Font != Helvetica {
		return fmt.Errorf("unsupported font %q", style.Font)
	}
	if style.Size <= 0 {
		return fmt.Errorf("invalid font size %v", style.Size)
	}

	name, err := p.fontResource()
	if err != nil {
		return err
	}

	x, y := p.origin.X+at.X, p.origin.Y+at.Y

	p.ops.WriteString("q\n")
	if clip, ok := style.ClipRect(at); ok {
		fmt.Fprintf(&p.ops, "%s %s %s %s re W n\n",
			num(p.origin.X+clip.X), num(p.origin.Y+clip.Y), num(clip.Width), num(clip.Height))
	}
	fmt.Fprintf(&p.ops, "BT\n0 g\n/%s %s Tf\n%s %s Td\n%s Tj\nET\nQ\n",
		name, num(style.Size), num(x), num(y), LiteralString(EncodeWinAnsi(text)))
	return nil
}

// fontResource registers the substitute font in the page resources and
// returns its resource name
func (p *pdfcpuPage) fontResource() (string, error) {
	if p.fontRes != "" {
		return p.fontRes, nil
	}

	res, err := p.resources()
	if err != nil {
		return "", err
	}

	fonts, err := p.doc.ctx.DereferenceDict(res["Font"])
	if err != nil {
		return "", fmt.Errorf("failed to resolve font resources: %w", err)
	}
	if fonts == nil {
		fonts = types.Dict{}
		res["Font"] = fonts
	}

	name := fontResourcePrefix
	for i := 1; fonts[name] != nil; i++ {
		name = fmt.Sprintf("%s%d", fontResourcePrefix, i)
	}

	ref, err := p.doc.substituteFont()
	if err != nil {
		return "", err
	}
	fonts[name] = ref

	p.fontRes = name
	return name, nil
}

// resources returns the page's own resource dictionary. A page that only
// inherits resources gets a copy of them, so the page tree stays untouched.
func (p *pdfcpuPage) resources() (types.Dict, error) {
	if obj, ok := p.dict["Resources"]; ok && obj != nil {
		res, err := p.doc.ctx.DereferenceDict(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve resources: %w", err)
		}
		if res != nil {
			return res, nil
		}
	}

	res := types.Dict{}
	for k, v := range p.inheritedRes {
		res[k] = v
	}
	if fonts, err := p.doc.ctx.DereferenceDict(res["Font"]); err == nil && fonts != nil {
		own := types.Dict{}
		for k, v := range fonts {
			own[k] = v
		}
		res["Font"] = own
	}
	p.dict["Resources"] = res
	return res, nil
}

// flush installs the buffered operators as page content
func (p *pdfcpuPage) flush() error {
	original, err := pdf.PageContent(p.doc.ctx, p.dict)
	if err != nil {
		p.doc.logger.Warn("keeping original content streams", "page", p.number, "error", err)
		return p.flushAsArray()
	}

	var content bytes.Buffer
	content.WriteString("q\n")
	content.Write(original)
	content.WriteString("\nQ\n")
	content.Write(p.ops.Bytes())

	ref, err := p.doc.newStream(content.Bytes())
	if err != nil {
		return err
	}
	p.dict["Contents"] = ref
	p.ops.Reset()
	return nil
}

// flushAsArray leaves the original streams in place and brackets them with
// new streams, for content that cannot be decoded.
func (p *pdfcpuPage) flushAsArray() error {
	pre, err := p.doc.newStream([]byte("q\n"))
	if err != nil {
		return err
	}
	post, err := p.doc.newStream(append([]byte("\nQ\n"), p.ops.Bytes()...))
	if err != nil {
		return err
	}

	arr := types.Array{pre}
	switch v := p.dict["Contents"].(type) {
	case nil:
	case types.Array:
		arr = append(arr, v...)
	case *types.IndirectRef:
		arr = append(arr, *v)
	default:
		arr = append(arr, v)
	}
	arr = append(arr, post)

	p.dict["Contents"] = arr
	p.ops.Reset()
	return nil
}
