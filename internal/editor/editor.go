// Package editor keeps the ordered page sequence and selection of one
// split-and-edit session.
//
// A PageDescriptor's PageNumber always points at the page in the original
// source document; reordering only moves descriptors around in the sequence.
package editor

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/neatpdf/internal/document"
	"github.com/local/neatpdf/internal/render"
)

var (
	ErrRenderFailed    = errors.New("failed to render page thumbnails")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// RenderError reports which page stopped a Load.
type RenderError struct {
	SourceID   string
	PageNumber int // 0 when the document could not be opened at all
	Err        error
}

func (e *RenderError) Error() string {
	if e.PageNumber == 0 {
		return fmt.Sprintf("%v: %s: %v", ErrRenderFailed, e.SourceID, e.Err)
	}
	return fmt.Sprintf("%v: %s page %d: %v", ErrRenderFailed, e.SourceID, e.PageNumber, e.Err)
}

func (e *RenderError) Unwrap() []error { return []error{ErrRenderFailed, e.Err} }

// Opener gives access to a document's page rasterizer.
type Opener interface {
	Open(data []byte) (render.Doc, error)
}

// PageDescriptor is one page of the edited sequence.
type PageDescriptor struct {
	ID         string           `json:"id"`
	SourceID   string           `json:"source_id"`
	PageNumber int              `json:"page_number"`
	FileName   string           `json:"file_name"`
	TotalPages int              `json:"total_pages"`
	Thumbnail  render.Thumbnail `json:"-"`
}

// PageID is the descriptor id of page n of a source document.
func PageID(sourceID string, n int) string { return fmt.Sprintf("%s-page-%d", sourceID, n) }

// Editor is not safe for concurrent use; the session serializes access.
type Editor struct {
	opener   Opener
	sourceID string
	pages    []PageDescriptor
	selected map[string]struct{}
}

func New(opener Opener) *Editor {
	return &Editor{opener: opener, selected: map[string]struct{}{}}
}

// Load replaces the sequence with every page of doc, in document order.
// If any page fails to render, nothing is kept: the sequence ends up empty and
// a *RenderError is returned.
func (e *Editor) Load(doc document.SourceDocument) ([]PageDescriptor, error) {
	e.Clear()

	rd, err := e.opener.Open(doc.Data)
	if err != nil {
		log.Error().Err(err).Str("doc_id", doc.ID).Msg("cannot open document for thumbnails")
		return []PageDescriptor{}, &RenderError{SourceID: doc.ID, Err: err}
	}
	defer rd.Close()

	total := rd.NumPage()
	pages := make([]PageDescriptor, 0, total)
	for n := 1; n <= total; n++ {
		th, err := rd.Render(n)
		if err != nil {
			log.Error().Err(err).Str("doc_id", doc.ID).Int("page", n).Msg("thumbnail generation failed")
			return []PageDescriptor{}, &RenderError{SourceID: doc.ID, PageNumber: n, Err: err}
		}
		pages = append(pages, PageDescriptor{
			ID:         PageID(doc.ID, n),
			SourceID:   doc.ID,
			PageNumber: n,
			FileName:   doc.Name,
			TotalPages: total,
			Thumbnail:  th,
		})
	}

	e.sourceID = doc.ID
	e.pages = pages
	log.Info().Str("doc_id", doc.ID).Int("pages", total).Msg("editing session loaded")
	return e.Pages(), nil
}

// Clear ends the editing session.
func (e *Editor) Clear() {
	e.sourceID = ""
	e.pages = nil
	e.selected = map[string]struct{}{}
}

// SourceID is the document being edited, or "" when nothing is loaded.
func (e *Editor) SourceID() string { return e.sourceID }

func (e *Editor) Len() int { return len(e.pages) }

// Pages returns a copy of the current sequence.
func (e *Editor) Pages() []PageDescriptor {
	return append([]PageDescriptor{}, e.pages...)
}

// Page looks a descriptor up by id.
func (e *Editor) Page(id string) (PageDescriptor, bool) {
	if i := e.index(id); i >= 0 {
		return e.pages[i], true
	}
	return PageDescriptor{}, false
}

// PageNumbers returns the original page numbers in current sequence order.
func (e *Editor) PageNumbers() []int {
	out := make([]int, len(e.pages))
	for i, p := range e.pages {
		out[i] = p.PageNumber
	}
	return out
}

func (e *Editor) IsSelected(id string) bool {
	_, ok := e.selected[id]
	return ok
}

// Selected returns the selected descriptors in current sequence order.
func (e *Editor) Selected() []PageDescriptor {
	out := []PageDescriptor{}
	for _, p := range e.pages {
		if e.IsSelected(p.ID) {
			out = append(out, p)
		}
	}
	return out
}

func (e *Editor) SelectedCount() int { return len(e.selected) }

// Toggle flips the selection of id. Unknown ids are ignored.
func (e *Editor) Toggle(id string) {
	if e.index(id) < 0 {
		return
	}
	if e.IsSelected(id) {
		delete(e.selected, id)
	} else {
		e.selected[id] = struct{}{}
	}
}

// SelectRange adds the pages at 1-based sequence positions start..end to the
// selection. Anything but 1 <= start <= end <= Len() is silently ignored.
func (e *Editor) SelectRange(start, end int) {
	if start < 1 || start > end || end > len(e.pages) {
		return
	}
	for _, p := range e.pages[start-1 : end] {
		e.selected[p.ID] = struct{}{}
	}
}

func (e *Editor) SelectAll() {
	e.selected = make(map[string]struct{}, len(e.pages))
	for _, p := range e.pages {
		e.selected[p.ID] = struct{}{}
	}
}

func (e *Editor) DeselectAll() { e.selected = map[string]struct{}{} }

// DeleteSelected drops every selected page from the sequence and clears the
// selection. It returns how many pages were removed.
func (e *Editor) DeleteSelected() int {
	kept := e.pages[:0]
	for _, p := range e.pages {
		if !e.IsSelected(p.ID) {
			kept = append(kept, p)
		}
	}
	removed := len(e.pages) - len(kept)
	clear(e.pages[len(kept):])
	e.pages = kept
	e.selected = map[string]struct{}{}
	return removed
}

// Reorder moves the page at index from so that it ends up at index to.
func (e *Editor) Reorder(from, to int) error {
	n := len(e.pages)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("reorder %d -> %d of %d: %w", from, to, n, ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}
	moved := e.pages[from]
	if from < to {
		copy(e.pages[from:to], e.pages[from+1:to+1])
	} else {
		copy(e.pages[to+1:from+1], e.pages[to:from])
	}
	e.pages[to] = moved
	return nil
}

func (e *Editor) index(id string) int {
	for i, p := range e.pages {
		if p.ID == id {
			return i
		}
	}
	return -1
}
