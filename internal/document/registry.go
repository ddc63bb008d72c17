package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/neatpdf/internal/metrics"
)

const pdfMIME = "application/pdf"

var ErrNotFound = errors.New("document not found")

// SourceDocument is an uploaded PDF. Data must be treated as read-only.
type SourceDocument struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PageCount  int       `json:"page_count"`
	Data       []byte    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// FileSource is one file handed over by the user (picker, drop, test fixture).
type FileSource interface {
	Name() string
	ReadAll() ([]byte, error)
}

// PageCounter parses a PDF far enough to count its pages.
type PageCounter interface {
	PageCount(data []byte) (int, error)
}

// Outcome of a single uploaded file.
type Outcome string

const (
	Accepted Outcome = "accepted"
	Ignored  Outcome = "ignored"  // not a PDF; dropped silently
	Rejected Outcome = "rejected" // looked like a PDF but could not be read
)

// IngestResult reports what happened to one uploaded file.
type IngestResult struct {
	Name       string  `json:"name"`
	Outcome    Outcome `json:"outcome"`
	DocumentID string  `json:"document_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// Registry holds the uploaded documents of a session in upload order.
type Registry struct {
	counter     PageCounter
	concurrency int

	mu   sync.RWMutex
	docs []SourceDocument
}

// NewRegistry creates an empty registry. concurrency bounds how many files
// are read and inspected at once during Ingest.
func NewRegistry(counter PageCounter, concurrency int) *Registry {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Registry{counter: counter, concurrency: concurrency}
}

// Ingest reads every file, keeps the PDFs and appends them to the registry in
// input order. Non-PDF files are ignored; unreadable PDFs are rejected. Neither
// fails the call: only context cancellation does.
func (r *Registry) Ingest(ctx context.Context, files []FileSource) ([]IngestResult, error) {
	results := make([]IngestResult, len(files))
	docs := make([]*SourceDocument, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], docs[i] = r.inspect(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	r.mu.Lock()
	for _, d := range docs {
		if d != nil {
			r.docs = append(r.docs, *d)
		}
	}
	r.mu.Unlock()

	for _, res := range results {
		metrics.IncIngested(string(res.Outcome))
	}
	return results, nil
}

func (r *Registry) inspect(f FileSource) (IngestResult, *SourceDocument) {
	res := IngestResult{Name: f.Name()}
	data, err := f.ReadAll()
	if err != nil {
		log.Warn().Err(err).Str("file", f.Name()).Msg("failed to read upload")
		res.Outcome, res.Reason = Rejected, err.Error()
		return res, nil
	}

	// sniff the content; the declared type and extension are not trusted
	mtype := mimetype.Detect(data)
	if !mtype.Is(pdfMIME) {
		log.Debug().Str("file", f.Name()).Str("mime", mtype.String()).Msg("ignoring non-PDF upload")
		res.Outcome = Ignored
		return res, nil
	}

	pages, err := r.counter.PageCount(data)
	if err != nil {
		log.Warn().Err(err).Str("file", f.Name()).Msg("unreadable PDF upload")
		res.Outcome, res.Reason = Rejected, err.Error()
		return res, nil
	}

	doc := &SourceDocument{
		ID:         uuid.NewString(),
		Name:       f.Name(),
		PageCount:  pages,
		Data:       data,
		UploadedAt: time.Now(),
	}
	log.Info().Str("doc_id", doc.ID).Str("file", doc.Name).Int("pages", pages).Int("bytes", len(data)).Msg("document added")
	res.Outcome, res.DocumentID = Accepted, doc.ID
	return res, doc
}

// Get returns the document with the given id.
func (r *Registry) Get(id string) (SourceDocument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.docs {
		if d.ID == id {
			return d, true
		}
	}
	return SourceDocument{}, false
}

// List returns the documents in upload order.
func (r *Registry) List() []SourceDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SourceDocument(nil), r.docs...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Remove drops a document.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.docs {
		if d.ID == id {
			r.docs = append(r.docs[:i], r.docs[i+1:]...)
			log.Info().Str("doc_id", id).Msg("document removed")
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Reset drops every document.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.docs = nil
	r.mu.Unlock()
}
