package pdf

import (
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
)

// Glyph advances used when a font has no width information, in text space units
const (
	defaultSimpleWidth    = 0.5
	defaultCompositeWidth = 1.0
)

// PDFCPUReader reads glyphs by interpreting page content streams parsed by
// pdfcpu. It is the last fallback: text operators and fonts are supported,
// form XObjects and font encoding differences are not.
//
// Resolving objects writes to the pdfcpu cross-reference table, so Glyphs
// calls are serialized.
type PDFCPUReader struct {
	mu  sync.Mutex
	ctx *model.Context
}

// NewPDFCPUReader parses data with pdfcpu
func NewPDFCPUReader(data []byte) (*PDFCPUReader, error) {
	ctx, err := ReadContext(data)
	if err != nil {
		return nil, err
	}
	return &PDFCPUReader{ctx: ctx}, nil
}

// Name returns the reader's library name
func (r *PDFCPUReader) Name() string {
	return "pdfcpu"
}

// NumPage returns the number of pages the reader sees
func (r *PDFCPUReader) NumPage() int {
	return r.ctx.PageCount
}

// Glyphs returns the shown glyphs of a page in content stream order
func (r *PDFCPUReader) Glyphs(pageNumber int) ([]Glyph, error) {
	if pageNumber < 1 || pageNumber > r.ctx.PageCount {
		return nil, fmt.Errorf("invalid page number: %d", pageNumber)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pageDict, _, attrs, err := r.ctx.PageDict(pageNumber, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get page dict: %w", err)
	}
	if pageDict == nil {
		return nil, fmt.Errorf("page %d not found", pageNumber)
	}

	content, err := PageContent(r.ctx, pageDict)
	if err != nil {
		return nil, err
	}

	res, err := r.ctx.DereferenceDict(pageDict["Resources"])
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resources: %w", err)
	}
	if res == nil && attrs != nil {
		res = attrs.Resources
	}

	return newTextInterpreter(r.fonts(res)).Run(content), nil
}

// fonts loads the font resources by name. Fonts that cannot be resolved are left
// out and fall back to default metrics when selected.
func (r *PDFCPUReader) fonts(res types.Dict) map[string]*fontInfo {
	fonts := make(map[string]*fontInfo)
	if res == nil {
		return fonts
	}
	fontDict, err := r.ctx.DereferenceDict(res["Font"])
	if err != nil || fontDict == nil {
		return fonts
	}

	for name, obj := range fontDict {
		d, err := r.ctx.DereferenceDict(obj)
		if err != nil || d == nil {
			continue
		}
		fonts[name] = r.loadFont(d)
	}
	return fonts
}

func (r *PDFCPUReader) loadFont(d types.Dict) *fontInfo {
	f := &fontInfo{
		baseFont:     r.name(d["BaseFont"]),
		missingWidth: defaultSimpleWidth,
	}

	if r.name(d["Subtype"]) == "Type0" {
		f.composite = true
		f.missingWidth = defaultCompositeWidth
		if arr := r.array(d["DescendantFonts"]); len(arr) > 0 {
			if cid, err := r.ctx.DereferenceDict(arr[0]); err == nil && cid != nil {
				r.loadCIDWidths(f, cid)
			}
		}
	} else {
		f.firstChar = int(r.number(d["FirstChar"]))
		for _, w := range r.array(d["Widths"]) {
			f.widths = append(f.widths, r.number(w)/1000)
		}
		if desc, err := r.ctx.DereferenceDict(d["FontDescriptor"]); err == nil && desc != nil && len(f.widths) > 0 {
			f.missingWidth = r.number(desc["MissingWidth"]) / 1000
		}
	}

	if sd, _, err := r.ctx.DereferenceStreamDict(d["ToUnicode"]); err == nil && sd != nil {
		if data, err := decodeStream(sd); err == nil {
			f.toUnicode = ParseToUnicode(data)
		}
	}
	return f
}

// loadCIDWidths reads DW and the W array of a descendant CID font
func (r *PDFCPUReader) loadCIDWidths(f *fontInfo, cid types.Dict) {
	if _, ok := cid["DW"]; ok {
		f.missingWidth = r.number(cid["DW"]) / 1000
	}

	w := r.array(cid["W"])
	f.cidWidths = make(map[int]float64)
	for i := 0; i+1 < len(w); {
		first := int(r.number(w[i]))
		if list := r.array(w[i+1]); list != nil {
			for j, v := range list {
				f.cidWidths[first+j] = r.number(v) / 1000
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			break
		}
		last := int(r.number(w[i+1]))
		width := r.number(w[i+2]) / 1000
		for c := first; c <= last && c-first < 0xFFFF; c++ {
			f.cidWidths[c] = width
		}
		i += 3
	}
}

func (r *PDFCPUReader) name(obj types.Object) string {
	o, err := r.ctx.Dereference(obj)
	if err != nil {
		return ""
	}
	if n, ok := o.(types.Name); ok {
		return string(n)
	}
	return ""
}

func (r *PDFCPUReader) number(obj types.Object) float64 {
	o, err := r.ctx.Dereference(obj)
	if err != nil {
		return 0
	}
	switch n := o.(type) {
	case types.Integer:
		return float64(n)
	case types.Float:
		return float64(n)
	}
	return 0
}

func (r *PDFCPUReader) array(obj types.Object) types.Array {
	o, err := r.ctx.Dereference(obj)
	if err != nil {
		return nil
	}
	if a, ok := o.(types.Array); ok {
		return a
	}
	return nil
}

// fontInfo holds the metrics and text mapping of a font resource
type fontInfo struct {
	baseFont  string
	composite bool

	firstChar    int
	widths       []float64
	cidWidths    map[int]float64
	missingWidth float64

	toUnicode *ToUnicode
}

// fallbackFont is used while no known font is selected
var fallbackFont = &fontInfo{missingWidth: defaultSimpleWidth}

func (f *fontInfo) displayName(resource string) string {
	if f.baseFont != "" {
		return f.baseFont
	}
	return resource
}

// codes splits a shown string into character codes, two bytes each for
// composite fonts
func (f *fontInfo) codes(s []byte) [][]byte {
	n := 1
	if f.composite {
		n = 2
	}
	codes := make([][]byte, 0, len(s)/n+1)
	for i := 0; i < len(s); i += n {
		end := min(i+n, len(s))
		codes = append(codes, s[i:end])
	}
	return codes
}

// width returns the advance of code in text space units
func (f *fontInfo) width(code []byte) float64 {
	c := codeValue(code)
	if f.composite {
		if w, ok := f.cidWidths[c]; ok {
			return w
		}
		return f.missingWidth
	}
	if i := c - f.firstChar; i >= 0 && i < len(f.widths) {
		return f.widths[i]
	}
	return f.missingWidth
}

// text maps code to text through the ToUnicode CMap, falling back to
// WinAnsi for simple fonts
func (f *fontInfo) text(code []byte) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup(uint32(codeValue(code))); ok {
			return s
		}
	}
	if f.composite || len(code) != 1 {
		return ""
	}
	return string(charmap.Windows1252.DecodeByte(code[0]))
}

func codeValue(code []byte) int {
	v := 0
	for _, b := range code {
		v = v<<8 | int(b)
	}
	return v
}
