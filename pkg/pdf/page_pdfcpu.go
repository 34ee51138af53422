package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
)

// Default US Letter size, used when a page has no MediaBox at all
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// PDFCPUPage implements the Page interface using pdfcpu for geometry
type PDFCPUPage struct {
	doc        *PDFDocument
	pageNumber int
	width      float64
	height     float64
	rotation   int
	// origin is the MediaBox lower-left corner; run anchors are reported relative to it
	origin coords.Point
}

// NewPDFCPUPage creates a new page using pdfcpu context
func NewPDFCPUPage(ctx *model.Context, pageNumber int) (*PDFCPUPage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}

	if pageNumber < 1 || pageNumber > ctx.PageCount {
		return nil, fmt.Errorf("page number %d out of range [1, %d]", pageNumber, ctx.PageCount)
	}

	box, rotation, err := PageGeometry(ctx, pageNumber)
	if err != nil {
		return nil, err
	}

	return &PDFCPUPage{
		pageNumber: pageNumber,
		width:      box.Width,
		height:     box.Height,
		rotation:   rotation,
		origin:     coords.Point{X: box.X, Y: box.Y},
	}, nil
}

// PageGeometry returns the page's MediaBox and rotation, following inheritance
func PageGeometry(ctx *model.Context, pageNumber int) (box coords.Rect, rotation int, err error) {
	// Get page dictionary and inherited attributes
	pageDict, _, attrs, err := ctx.PageDict(pageNumber, false)
	if err != nil {
		return coords.Rect{}, 0, fmt.Errorf("failed to get page dict: %w", err)
	}
	if pageDict == nil {
		return coords.Rect{}, 0, fmt.Errorf("page %d not found", pageNumber)
	}

	box = coords.Rect{Width: defaultPageWidth, Height: defaultPageHeight}
	if attrs != nil && attrs.MediaBox != nil {
		mb := attrs.MediaBox
		box = coords.Rect{X: mb.LL.X, Y: mb.LL.Y, Width: mb.Width(), Height: mb.Height()}
	}

	// Extract rotation from inherited attributes first, then from page dict
	if attrs != nil {
		rotation = attrs.Rotate
	} else if rot := pageDict["Rotate"]; rot != nil {
		if rotInt, ok := rot.(types.Integer); ok {
			rotation = int(rotInt)
		}
	}

	return box, rotation, nil
}

// PageContent returns the decoded content of a page, all content streams joined
// in order. A page without Contents yields nil.
func PageContent(ctx *model.Context, pageDict types.Dict) ([]byte, error) {
	contents := pageDict["Contents"]
	if contents == nil {
		return nil, nil
	}

	var contentStreams [][]byte

	// Handle different content types - also check for value types
	switch v := contents.(type) {
	case *types.IndirectRef:
		decoded, err := derefContent(ctx, *v)
		if err != nil {
			return nil, err
		}
		contentStreams = append(contentStreams, decoded...)

	case types.IndirectRef:
		decoded, err := derefContent(ctx, v)
		if err != nil {
			return nil, err
		}
		contentStreams = append(contentStreams, decoded...)

	case types.Array:
		for i, item := range v {
			var indRef types.IndirectRef
			switch ref := item.(type) {
			case *types.IndirectRef:
				indRef = *ref
			case types.IndirectRef:
				indRef = ref
			default:
				return nil, fmt.Errorf("content element %d is %T, not a reference", i, item)
			}
			streamDict, _, err := ctx.DereferenceStreamDict(indRef)
			if err != nil {
				return nil, fmt.Errorf("failed to dereference stream: %w", err)
			}
			if streamDict == nil {
				continue
			}
			decoded, err := decodeStream(streamDict)
			if err != nil {
				return nil, fmt.Errorf("failed to decode stream: %w", err)
			}
			contentStreams = append(contentStreams, decoded)
		}

	default:
		return nil, fmt.Errorf("unexpected Contents type %T", contents)
	}

	return combineContentStreams(contentStreams), nil
}

// derefContent resolves a Contents reference, which may point at a stream or
// at an array of streams.
func derefContent(ctx *model.Context, ref types.IndirectRef) ([][]byte, error) {
	obj, err := ctx.Dereference(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference content: %w", err)
	}

	switch o := obj.(type) {
	case types.StreamDict:
		decoded, err := decodeStream(&o)
		if err != nil {
			return nil, fmt.Errorf("failed to decode stream: %w", err)
		}
		return [][]byte{decoded}, nil
	case types.Array:
		content, err := PageContent(ctx, types.Dict{"Contents": o})
		if err != nil {
			return nil, err
		}
		return [][]byte{content}, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected content object %T", obj)
	}
}

// decodeStream decodes a stream dictionary
func decodeStream(stream *types.StreamDict) ([]byte, error) {
	// If content is already available, return it
	if len(stream.Content) > 0 {
		return stream.Content, nil
	}

	// Decode the stream
	if err := stream.Decode(); err != nil {
		return nil, err
	}

	return stream.Content, nil
}

// combineContentStreams combines multiple content streams
func combineContentStreams(streams [][]byte) []byte {
	var combined []byte
	for _, stream := range streams {
		combined = append(combined, stream...)
		combined = append(combined, '\n')
	}
	return combined
}

// GetPageNumber returns the page number (1-based)
func (p *PDFCPUPage) GetPageNumber() int {
	return p.pageNumber
}

// GetWidth returns the page width
func (p *PDFCPUPage) GetWidth() float64 {
	return p.width
}

// GetHeight returns the page height
func (p *PDFCPUPage) GetHeight() float64 {
	return p.height
}

// GetRotation returns the page rotation in degrees
func (p *PDFCPUPage) GetRotation() int {
	return p.rotation
}

// Size returns the natural page size in points
func (p *PDFCPUPage) Size() coords.Size {
	return coords.Size{Width: p.width, Height: p.height}
}

// TextRuns returns the page's text runs in content stream order, anchored
// relative to the MediaBox lower-left corner
func (p *PDFCPUPage) TextRuns() ([]TextRun, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("page %d has no document", p.pageNumber)
	}
	runs, err := p.doc.textRuns(p.pageNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text runs of page %d: %w", p.pageNumber, err)
	}
	for i := range runs {
		runs[i].Transform[4] -= p.origin.X
		runs[i].Transform[5] -= p.origin.Y
	}
	return runs, nil
}
