// Package testpdf builds small, valid PDF files in memory for tests.
//
// Every page shares one Courier Type1 font with an explicit Widths array and
// WinAnsiEncoding, so text readers report real glyph advances (600/1000 em).
package testpdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// CourierAdvance is the advance of every Courier glyph as a fraction of the font size.
const CourierAdvance = 0.6

// Text is one string shown with a single Tj at a baseline origin.
type Text struct {
	X, Y float64
	Size float64
	S    string
}

// Page describes one page.
type Page struct {
	Width, Height float64
	// X0, Y0 is the MediaBox lower-left corner, zero for most pages
	X0, Y0 float64
	Texts  []Text
}

// Letter returns a US Letter page showing texts.
func Letter(texts ...Text) Page {
	return Page{Width: 612, Height: 792, Texts: texts}
}

// Doc describes a whole document.
type Doc struct {
	Pages []Page
	// InheritMediaBox moves the first page's MediaBox onto the page tree root
	// and leaves it off every page dictionary.
	InheritMediaBox bool
}

// Build returns the bytes of a document made of pages.
func Build(pages ...Page) []byte {
	return Doc{Pages: pages}.Bytes()
}

// Bytes serializes the document with a classic xref table.
func (d Doc) Bytes() []byte {
	const (
		catalogObj = 1
		pagesObj   = 2
		fontObj    = 3
		firstPage  = 4
	)

	var objs []string
	add := func(s string) { objs = append(objs, s) }

	kids := make([]string, len(d.Pages))
	for i := range d.Pages {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+2*i)
	}

	add(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj))

	pages := fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d", strings.Join(kids, " "), len(d.Pages))
	if d.InheritMediaBox && len(d.Pages) > 0 {
		pages += " /MediaBox " + mediaBox(d.Pages[0])
	}
	add(pages + " >>")

	add(fontDict())

	for i, p := range d.Pages {
		pageObj := firstPage + 2*i
		page := fmt.Sprintf("<< /Type /Page /Parent %d 0 R", pagesObj)
		if !d.InheritMediaBox {
			page += " /MediaBox " + mediaBox(p)
		}
		page += fmt.Sprintf(" /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, pageObj+1)
		add(page)

		content := ContentStream(p.Texts)
		add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, catalogObj, xref)

	return buf.Bytes()
}

// ContentStream returns the page content showing texts with font /F1.
func ContentStream(texts []Text) string {
	var sb strings.Builder
	for _, t := range texts {
		fmt.Fprintf(&sb, "BT /F1 %s Tf %s %s Td (%s) Tj ET\n", num(t.Size), num(t.X), num(t.Y), Escape(t.S))
	}
	return sb.String()
}

// Escape quotes s for use inside a PDF literal string.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func fontDict() string {
	widths := make([]string, 126-32+1)
	for i := range widths {
		widths[i] = "600"
	}
	return "<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding" +
		" /FirstChar 32 /LastChar 126 /Widths [" + strings.Join(widths, " ") + "] >>"
}

func mediaBox(p Page) string {
	return fmt.Sprintf("[%s %s %s %s]", num(p.X0), num(p.Y0), num(p.X0+p.Width), num(p.Y0+p.Height))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
