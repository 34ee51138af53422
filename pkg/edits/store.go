// Package edits keeps the committed edits of a document, at most one per run.
package edits

import (
	"sort"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
)

// Record is one committed edit of a text run
type Record struct {
	Index    int    `json:"index" yaml:"index"`
	Text     string `json:"text" yaml:"text"`
	Original string `json:"original" yaml:"original"`
	// Rect is the region's pixel rectangle when the edit was committed
	Rect coords.Rect `json:"rect" yaml:"rect"`
}

// Changed reports whether the edit differs from the original text
func (r Record) Changed() bool {
	return r.Text != r.Original
}

// Collection maps a page number (1-based) to its records, in first-commit order
type Collection map[int][]Record

// Pages returns the page numbers with at least one record, ascending
func (c Collection) Pages() []int {
	pages := make([]int, 0, len(c))
	for page, records := range c {
		if len(records) > 0 {
			pages = append(pages, page)
		}
	}
	sort.Ints(pages)
	return pages
}

// Len returns the total number of records
func (c Collection) Len() int {
	n := 0
	for _, records := range c {
		n += len(records)
	}
	return n
}

// Store is an upsert store of edit records keyed by (page, index).
// It is not safe for concurrent use.
type Store struct {
	pages map[int][]Record
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{pages: make(map[int][]Record)}
}

// Upsert replaces the record of (page, rec.Index) or appends it
func (s *Store) Upsert(page int, rec Record) {
	records := s.pages[page]
	for i := range records {
		if records[i].Index == rec.Index {
			records[i] = rec
			return
		}
	}
	s.pages[page] = append(records, rec)
}

// Get returns the record of (page, index)
func (s *Store) Get(page, index int) (Record, bool) {
	for _, r := range s.pages[page] {
		if r.Index == index {
			return r, true
		}
	}
	return Record{}, false
}

// All returns a copy of every record
func (s *Store) All() Collection {
	out := make(Collection, len(s.pages))
	for page, records := range s.pages {
		out[page] = append([]Record(nil), records...)
	}
	return out
}

// Pages returns the page numbers with at least one record, ascending
func (s *Store) Pages() []int {
	return Collection(s.pages).Pages()
}

// Len returns the total number of records
func (s *Store) Len() int {
	return Collection(s.pages).Len()
}

// Clear drops every record
func (s *Store) Clear() {
	s.pages = make(map[int][]Record)
}
