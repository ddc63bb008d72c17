// Package session runs the user actions of one app instance against its
// documents, page editor and view state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/local/neatpdf/internal/document"
	"github.com/local/neatpdf/internal/editor"
	"github.com/local/neatpdf/internal/metrics"
	"github.com/local/neatpdf/internal/view"
)

var (
	ErrBusy         = errors.New("another operation is in progress")
	ErrNotAvailable = errors.New("action not available in the current view")
)

// Assembler builds output PDFs from original document bytes.
type Assembler interface {
	ExtractSingle(data []byte, pageNumber int) ([]byte, error)
	ExtractMany(data []byte, pageNumbers []int) ([]byte, error)
	MergeAll(sources [][]byte) ([]byte, error)
}

// OutputSink receives every produced file.
type OutputSink interface {
	Deliver(ctx context.Context, name string, data []byte) error
}

// resetter is implemented by sinks that hold on to delivered files.
type resetter interface {
	Reset()
}

type Dependencies struct {
	Registry  *document.Registry
	Editor    *editor.Editor
	Assembler Assembler
	Sink      OutputSink
}

// Session is safe for concurrent use. Reset, Upload, OpenDocument, Merge and
// the exports are exclusive: while one runs, another returns ErrBusy.
type Session struct {
	deps Dependencies
	busy atomic.Bool

	mu      sync.Mutex
	state   view.State
	editing string // document chosen in the page editor, even if it failed to load
}

func New(deps Dependencies) *Session {
	return &Session{deps: deps, state: view.Landing}
}

// Snapshot is the read model served to the page.
type Snapshot struct {
	View      view.State                `json:"view"`
	Busy      bool                      `json:"busy"`
	Documents []document.SourceDocument `json:"documents"`
	EditingID string                    `json:"editing_id,omitempty"`
	Pages     []PageView                `json:"pages"`
	Selected  int                       `json:"selected"`
}

type PageView struct {
	editor.PageDescriptor
	Selected bool `json:"selected"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	ed := s.deps.Editor
	snap := Snapshot{
		View:      s.state,
		Busy:      s.busy.Load(),
		Documents: s.deps.Registry.List(),
		EditingID: s.editing,
		Pages:     []PageView{},
		Selected:  ed.SelectedCount(),
	}
	if snap.Documents == nil {
		snap.Documents = []document.SourceDocument{}
	}
	for _, p := range ed.Pages() {
		snap.Pages = append(snap.Pages, PageView{PageDescriptor: p, Selected: ed.IsSelected(p.ID)})
	}
	return snap
}

// Page returns a descriptor of the sequence under edit, thumbnail included.
func (s *Session) Page(id string) (editor.PageDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Editor.Page(id)
}

// acquire claims the busy flag for op. The caller must call release.
func (s *Session) acquire(op string) error {
	if !s.busy.CompareAndSwap(false, true) {
		metrics.IncBusy(op)
		log.Debug().Str("op", op).Msg("rejected while busy")
		return fmt.Errorf("%s: %w", op, ErrBusy)
	}
	return nil
}

func (s *Session) release() { s.busy.Store(false) }

func (s *Session) apply(a view.Action) error {
	next, err := view.Transition(s.state, a)
	if err != nil {
		return err
	}
	log.Debug().Str("from", string(s.state)).Str("to", string(next)).Msg("view changed")
	s.state = next
	return nil
}

func (s *Session) ChooseMerge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(view.ChooseMerge)
}

func (s *Session) ChooseSplit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(view.ChooseSplit)
}

// Back leaves the page editor; the edited sequence is discarded.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.apply(view.Back); err != nil {
		return err
	}
	s.stopEditing()
	return nil
}

// Reset returns to the landing view and forgets every document, the edited
// sequence and any undelivered output. It is refused while another operation
// runs, so nothing lands in the registry or the sink after the reset.
func (s *Session) Reset() error {
	if err := s.acquire("reset"); err != nil {
		return err
	}
	defer s.release()
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.apply(view.Reset)
	s.deps.Registry.Reset()
	s.stopEditing()
	if r, ok := s.deps.Sink.(resetter); ok {
		r.Reset()
	}
	log.Info().Msg("session reset")
	return nil
}

// Upload adds the PDFs among files to the document list, in input order.
func (s *Session) Upload(ctx context.Context, files []document.FileSource) ([]document.IngestResult, error) {
	if err := s.acquire("upload"); err != nil {
		return nil, err
	}
	defer s.release()

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != view.Merge && state != view.SplitSelect {
		return nil, fmt.Errorf("upload in %s: %w", state, ErrNotAvailable)
	}
	results, err := s.deps.Registry.Ingest(ctx, files)
	if err != nil {
		log.Error().Err(err).Int("files", len(files)).Msg("upload failed")
		return nil, err
	}
	log.Info().Int("files", len(files)).Int("documents", s.deps.Registry.Len()).Msg("upload finished")
	return results, nil
}

// RemoveDocument drops a document. If it is the one being edited, the editor
// is cleared and the view goes back to document selection.
func (s *Session) RemoveDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deps.Registry.Remove(id); err != nil {
		return err
	}
	if s.editing == id {
		s.stopEditing()
		if s.state == view.SplitEdit {
			_ = s.apply(view.Back)
		}
	}
	return nil
}

func (s *Session) stopEditing() {
	s.editing = ""
	s.deps.Editor.Clear()
}

// OpenDocument loads the pages of a document into the editor. The view moves
// to the page editor even when thumbnails fail, so the error can be shown
// there; the editor is then empty.
func (s *Session) OpenDocument(ctx context.Context, id string) error {
	if err := s.acquire("open"); err != nil {
		return err
	}
	defer s.release()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := view.Transition(s.state, view.OpenDocument); err != nil {
		return err
	}
	doc, ok := s.deps.Registry.Get(id)
	if !ok {
		return fmt.Errorf("open %s: %w", id, document.ErrNotFound)
	}
	_, err := s.deps.Editor.Load(doc)
	s.editing = doc.ID
	_ = s.apply(view.OpenDocument)
	return err
}

// Merge concatenates every document in upload order into merged.pdf.
// With no documents it does nothing.
func (s *Session) Merge(ctx context.Context) ([]string, error) {
	if err := s.acquire("merge"); err != nil {
		return nil, err
	}
	defer s.release()

	s.mu.Lock()
	if s.state != view.Merge {
		defer s.mu.Unlock()
		return nil, fmt.Errorf("merge in %s: %w", s.state, ErrNotAvailable)
	}
	docs := s.deps.Registry.List()
	s.mu.Unlock()

	if len(docs) == 0 {
		return nil, nil
	}
	sources := make([][]byte, len(docs))
	for i, d := range docs {
		sources[i] = d.Data
	}
	out, err := s.deps.Assembler.MergeAll(sources)
	if err != nil {
		log.Error().Err(err).Int("documents", len(docs)).Msg("merge failed")
		return nil, err
	}
	return s.deliver(ctx, output{name: mergedName, data: out})
}

// The page editing actions below only apply while a document is open.

func (s *Session) Toggle(id string) error {
	return s.edit(func(e *editor.Editor) error { e.Toggle(id); return nil })
}

func (s *Session) SelectRange(start, end int) error {
	return s.edit(func(e *editor.Editor) error { e.SelectRange(start, end); return nil })
}

func (s *Session) SelectAll() error {
	return s.edit(func(e *editor.Editor) error { e.SelectAll(); return nil })
}

func (s *Session) DeselectAll() error {
	return s.edit(func(e *editor.Editor) error { e.DeselectAll(); return nil })
}

func (s *Session) DeleteSelected() error {
	return s.edit(func(e *editor.Editor) error {
		if n := e.DeleteSelected(); n > 0 {
			log.Info().Str("doc_id", e.SourceID()).Int("removed", n).Int("left", e.Len()).Msg("pages deleted")
		}
		return nil
	})
}

func (s *Session) Reorder(from, to int) error {
	return s.edit(func(e *editor.Editor) error { return e.Reorder(from, to) })
}

func (s *Session) edit(fn func(*editor.Editor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != view.SplitEdit {
		return fmt.Errorf("edit in %s: %w", s.state, ErrNotAvailable)
	}
	return fn(s.deps.Editor)
}

// exportJob is what an export needs from the editor, copied out under the lock
// so that assembly runs without holding it.
type exportJob struct {
	doc      document.SourceDocument
	base     string
	all      []int // original page numbers of the whole sequence
	selected []int // original page numbers of the selection, in sequence order
}

// ExportSelectedSeparately writes one PDF per selected page, in sequence order.
func (s *Session) ExportSelectedSeparately(ctx context.Context) ([]string, error) {
	return s.export(ctx, "export_separate", func(job exportJob) ([]output, error) {
		var outs []output
		for _, n := range job.selected {
			data, err := s.deps.Assembler.ExtractSingle(job.doc.Data, n)
			if err != nil {
				return nil, err
			}
			outs = append(outs, output{name: pageName(job.base, n), data: data})
		}
		return outs, nil
	})
}

// ExportSelectedAsOne writes the selected pages, in sequence order, to one PDF.
func (s *Session) ExportSelectedAsOne(ctx context.Context) ([]string, error) {
	return s.export(ctx, "export_selected", func(job exportJob) ([]output, error) {
		if len(job.selected) == 0 {
			return nil, nil
		}
		data, err := s.deps.Assembler.ExtractMany(job.doc.Data, job.selected)
		if err != nil {
			return nil, err
		}
		return []output{{name: selectedName(job.base), data: data}}, nil
	})
}

// ExportAll writes the whole edited sequence to one PDF.
func (s *Session) ExportAll(ctx context.Context) ([]string, error) {
	return s.export(ctx, "export_all", func(job exportJob) ([]output, error) {
		data, err := s.deps.Assembler.ExtractMany(job.doc.Data, job.all)
		if err != nil {
			return nil, err
		}
		return []output{{name: editedName(job.base), data: data}}, nil
	})
}

type output struct {
	name string
	data []byte
}

func (s *Session) export(ctx context.Context, op string, build func(exportJob) ([]output, error)) ([]string, error) {
	if err := s.acquire(op); err != nil {
		return nil, err
	}
	defer s.release()

	job, ok, err := s.prepareExport(op)
	if err != nil || !ok {
		return nil, err
	}
	outs, err := build(job)
	if err != nil {
		log.Error().Err(err).Str("op", op).Str("doc_id", job.doc.ID).Msg("export failed")
		return nil, err
	}
	return s.deliver(ctx, outs...)
}

// prepareExport reports ok=false when the sequence is empty.
func (s *Session) prepareExport(op string) (exportJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != view.SplitEdit {
		return exportJob{}, false, fmt.Errorf("%s in %s: %w", op, s.state, ErrNotAvailable)
	}
	ed := s.deps.Editor
	if ed.Len() == 0 {
		return exportJob{}, false, nil
	}
	doc, ok := s.deps.Registry.Get(ed.SourceID())
	if !ok {
		return exportJob{}, false, fmt.Errorf("%s: %s: %w", op, ed.SourceID(), document.ErrNotFound)
	}
	job := exportJob{doc: doc, base: baseName(doc.Name), all: ed.PageNumbers()}
	for _, p := range ed.Selected() {
		job.selected = append(job.selected, p.PageNumber)
	}
	return job, true, nil
}

func (s *Session) deliver(ctx context.Context, outs ...output) ([]string, error) {
	names := make([]string, 0, len(outs))
	for _, o := range outs {
		if err := s.deps.Sink.Deliver(ctx, o.name, o.data); err != nil {
			log.Error().Err(err).Str("file", o.name).Msg("delivery failed")
			return names, fmt.Errorf("deliver %s: %w", o.name, err)
		}
		log.Info().Str("file", o.name).Int("bytes", len(o.data)).Msg("output delivered")
		names = append(names, o.name)
	}
	return names, nil
}
