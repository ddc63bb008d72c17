// Package assembly builds new PDF byte buffers out of existing ones using pdfcpu.
//
// Every operation reads the caller's original bytes through a fresh reader and
// a fresh pdfcpu configuration, so repeated edits never build on top of an
// earlier intermediate document.
package assembly

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/neatpdf/internal/metrics"
)

// Operation names, used in errors, logs and metrics.
const (
	OpPageCount     = "page_count"
	OpExtractSingle = "extract_single"
	OpExtractMany   = "extract_many"
	OpMergeAll      = "merge_all"
)

var (
	ErrNoInput        = errors.New("no input")
	ErrPageOutOfRange = errors.New("page out of range")
)

// Error reports a failed assembly operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Options configures an Assembler.
type Options struct {
	// Strict turns on pdfcpu's strict validation; relaxed is the default.
	Strict bool
}

// Assembler is the pdfcpu-backed implementation of the assembly contract.
type Assembler struct {
	strict bool
}

var disableConfigDir sync.Once

// New creates an Assembler. pdfcpu's on-disk config dir is switched off:
// nothing about a session may outlive the process.
func New(opts Options) *Assembler {
	disableConfigDir.Do(api.DisableConfigDir)
	return &Assembler{strict: opts.Strict}
}

func (a *Assembler) config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if a.strict {
		conf.ValidationMode = model.ValidationStrict
	}
	return conf
}

// PageCount returns the number of pages in data.
func (a *Assembler) PageCount(data []byte) (n int, err error) {
	defer observe(OpPageCount, time.Now(), &err)
	if len(data) == 0 {
		return 0, &Error{Op: OpPageCount, Err: ErrNoInput}
	}
	n, err = api.PageCount(bytes.NewReader(data), a.config())
	if err != nil {
		return 0, &Error{Op: OpPageCount, Err: err}
	}
	return n, nil
}

// ExtractSingle returns a one-page document holding page pageNumber (1-based) of data.
func (a *Assembler) ExtractSingle(data []byte, pageNumber int) (out []byte, err error) {
	defer observe(OpExtractSingle, time.Now(), &err)
	return a.collect(OpExtractSingle, data, []int{pageNumber})
}

// ExtractMany returns a document made of the given pages of data, in the given order.
// Pages may repeat.
func (a *Assembler) ExtractMany(data []byte, pageNumbers []int) (out []byte, err error) {
	defer observe(OpExtractMany, time.Now(), &err)
	return a.collect(OpExtractMany, data, pageNumbers)
}

// MergeAll concatenates complete documents in the order given.
func (a *Assembler) MergeAll(sources [][]byte) (out []byte, err error) {
	defer observe(OpMergeAll, time.Now(), &err)
	if len(sources) == 0 {
		return nil, &Error{Op: OpMergeAll, Err: ErrNoInput}
	}
	readers := make([]io.ReadSeeker, 0, len(sources))
	for i, src := range sources {
		if len(src) == 0 {
			return nil, &Error{Op: OpMergeAll, Err: fmt.Errorf("source %d: %w", i, ErrNoInput)}
		}
		readers = append(readers, bytes.NewReader(src))
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, a.config()); err != nil {
		return nil, &Error{Op: OpMergeAll, Err: err}
	}
	log.Debug().Int("sources", len(sources)).Int("bytes", buf.Len()).Msg("merged documents")
	return buf.Bytes(), nil
}

func (a *Assembler) collect(op string, data []byte, pageNumbers []int) ([]byte, error) {
	if len(data) == 0 || len(pageNumbers) == 0 {
		return nil, &Error{Op: op, Err: ErrNoInput}
	}
	total, err := api.PageCount(bytes.NewReader(data), a.config())
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	selection := make([]string, 0, len(pageNumbers))
	for _, p := range pageNumbers {
		if p < 1 || p > total {
			return nil, &Error{Op: op, Err: fmt.Errorf("page %d of %d: %w", p, total, ErrPageOutOfRange)}
		}
		selection = append(selection, strconv.Itoa(p))
	}

	// Collect keeps the selection order (and duplicates), unlike Trim.
	var buf bytes.Buffer
	if err := api.Collect(bytes.NewReader(data), &buf, selection, a.config()); err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	log.Debug().Str("op", op).Int("pages", len(selection)).Int("bytes", buf.Len()).Msg("collected pages")
	return buf.Bytes(), nil
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveAssembly(op, *err, time.Since(start))
}
