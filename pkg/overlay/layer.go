// Package overlay keeps the editable regions laid over one rendered page and
// moves them between display and editing as interaction events arrive.
package overlay

import (
	"errors"
	"fmt"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/edits"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/extractors"
)

var (
	// ErrNotEditing is returned for events that need a region in editing state
	ErrNotEditing = errors.New("no region is being edited")
	// ErrUnknownRegion is returned for an index the layer does not have
	ErrUnknownRegion = errors.New("unknown region")
	// ErrReleased is returned for events sent after Release or Discard
	ErrReleased = errors.New("overlay layer released")
)

// CommitSink receives committed edits
type CommitSink interface {
	Commit(page int, rec edits.Record)
}

// CommitFunc adapts a function to CommitSink
type CommitFunc func(page int, rec edits.Record)

// Commit calls f(page, rec)
func (f CommitFunc) Commit(page int, rec edits.Record) {
	f(page, rec)
}

// Region is one editable text region of the displayed page
type Region struct {
	Page     int         `json:"page"`
	Index    int         `json:"index"`
	Text     string      `json:"text"`
	Original string      `json:"original"`
	Rect     coords.Rect `json:"rect"`
	FontPx   float64     `json:"font_px"`
	State    State       `json:"state"`
	// Draft holds the text being typed while the region is editing
	Draft string `json:"draft,omitempty"`
}

// Layer holds the regions of one page. At most one region edits at a time.
// A Layer is not safe for concurrent use.
type Layer struct {
	page     int
	regions  []Region
	editing  int
	sink     CommitSink
	released bool
}

// NewLayer creates a layer with every region in display state
func NewLayer(page int, regions []extractors.Region, sink CommitSink) *Layer {
	l := &Layer{
		page:    page,
		regions: make([]Region, len(regions)),
		editing: -1,
		sink:    sink,
	}
	for i, r := range regions {
		l.regions[i] = Region{
			Page:     page,
			Index:    r.Index,
			Text:     r.Text,
			Original: r.Text,
			Rect:     r.Rect,
			FontPx:   r.FontPx,
			State:    Display,
		}
	}
	return l
}

// ShowCommitted displays earlier committed text on the matching regions.
// Nothing is committed and original texts stay as extracted.
func (l *Layer) ShowCommitted(records []edits.Record) {
	for _, rec := range records {
		if i, ok := l.lookup(rec.Index); ok && l.regions[i].State == Display {
			l.regions[i].Text = rec.Text
		}
	}
}

// Page returns the page number the layer belongs to
func (l *Layer) Page() int { return l.page }

// Len returns the number of regions
func (l *Layer) Len() int { return len(l.regions) }

// Regions returns a copy of the regions
func (l *Layer) Regions() []Region {
	return append([]Region(nil), l.regions...)
}

// Region returns the region at index
func (l *Layer) Region(index int) (Region, bool) {
	i, ok := l.lookup(index)
	if !ok {
		return Region{}, false
	}
	return l.regions[i], true
}

// Editing returns the index of the region being edited
func (l *Layer) Editing() (int, bool) {
	if l.editing < 0 {
		return 0, false
	}
	return l.regions[l.editing].Index, true
}

// Released reports whether the layer has been torn down
func (l *Layer) Released() bool { return l.released }

// Handle applies one interaction event
func (l *Layer) Handle(ev Event) error {
	switch ev.Kind {
	case Activate:
		return l.Activate(ev.Index)
	case Input:
		return l.Input(ev.Text)
	case Confirm:
		return l.Confirm()
	case Cancel:
		return l.Cancel()
	case Blur:
		return l.Blur()
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

// Activate puts the region at index into editing state, committing any
// other region that is still editing. Activating the editing region does nothing.
func (l *Layer) Activate(index int) error {
	if l.released {
		return ErrReleased
	}
	i, ok := l.lookup(index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRegion, index)
	}
	if l.editing == i {
		return nil
	}
	if l.editing >= 0 {
		l.commit()
	}

	r := &l.regions[i]
	r.State = Editing
	r.Draft = r.Text
	l.editing = i
	return nil
}

// Input replaces the draft text of the editing region
func (l *Layer) Input(text string) error {
	if l.released {
		return ErrReleased
	}
	if l.editing < 0 {
		return ErrNotEditing
	}
	l.regions[l.editing].Draft = text
	return nil
}

// Confirm commits the editing region
func (l *Layer) Confirm() error {
	if l.released {
		return ErrReleased
	}
	if l.editing < 0 {
		return ErrNotEditing
	}
	l.commit()
	return nil
}

// Blur commits the editing region, if any. Focus loss without an editing
// region is not an error.
func (l *Layer) Blur() error {
	if l.released {
		return ErrReleased
	}
	if l.editing >= 0 {
		l.commit()
	}
	return nil
}

// Cancel leaves editing and shows the original text again. No record is
// written and an earlier record of the region is kept as it is.
func (l *Layer) Cancel() error {
	if l.released {
		return ErrReleased
	}
	if l.editing < 0 {
		return ErrNotEditing
	}
	r := &l.regions[l.editing]
	r.Text = r.Original
	r.Draft = ""
	r.State = Display
	l.editing = -1
	return nil
}

// Release commits any pending edit and tears the layer down
func (l *Layer) Release() {
	if l.released {
		return
	}
	if l.editing >= 0 {
		l.commit()
	}
	l.released = true
}

// Discard tears the layer down dropping any pending edit
func (l *Layer) Discard() {
	if l.editing >= 0 {
		r := &l.regions[l.editing]
		r.Draft = ""
		r.State = Display
		l.editing = -1
	}
	l.released = true
}

func (l *Layer) commit() {
	r := &l.regions[l.editing]
	r.Text = r.Draft
	r.Draft = ""
	r.State = Display
	l.editing = -1

	if l.sink != nil {
		l.sink.Commit(l.page, edits.Record{
			Index:    r.Index,
			Text:     r.Text,
			Original: r.Original,
			Rect:     r.Rect,
		})
	}
}

func (l *Layer) lookup(index int) (int, bool) {
	// regions come from the extractor with Index == position
	if index >= 0 && index < len(l.regions) && l.regions[index].Index == index {
		return index, true
	}
	for i := range l.regions {
		if l.regions[i].Index == index {
			return i, true
		}
	}
	return 0, false
}
