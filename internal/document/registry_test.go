package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/neatpdf/internal/assembly"
	"github.com/local/neatpdf/internal/testpdf"
)

type failingSource struct{ name string }

func (f failingSource) Name() string            { return f.name }
func (f failingSource) ReadAll() ([]byte, error) { return nil, errors.New("disk on fire") }

func newRegistry() *Registry {
	return NewRegistry(assembly.New(assembly.Options{}), 3)
}

func TestIngestKeepsPDFsInInputOrder(t *testing.T) {
	r := newRegistry()
	results, err := r.Ingest(context.Background(), []FileSource{
		Bytes{FileName: "a.pdf", Data: testpdf.Build(3)},
		Bytes{FileName: "notes.txt", Data: []byte("hello there, plain text")},
		Bytes{FileName: "b.pdf", Data: testpdf.Build(2)},
		Bytes{FileName: "c.pdf", Data: testpdf.Build(1)},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, Accepted, results[0].Outcome)
	assert.Equal(t, Ignored, results[1].Outcome)
	assert.Equal(t, Accepted, results[2].Outcome)
	assert.Equal(t, Accepted, results[3].Outcome)

	docs := r.List()
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, []string{docs[0].Name, docs[1].Name, docs[2].Name})
	assert.Equal(t, []int{3, 2, 1}, []int{docs[0].PageCount, docs[1].PageCount, docs[2].PageCount})
	assert.Equal(t, results[0].DocumentID, docs[0].ID)
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
}

func TestIngestAppendsToExisting(t *testing.T) {
	r := newRegistry()
	_, err := r.Ingest(context.Background(), []FileSource{Bytes{FileName: "first.pdf", Data: testpdf.Build(1)}})
	require.NoError(t, err)
	_, err = r.Ingest(context.Background(), []FileSource{Bytes{FileName: "second.pdf", Data: testpdf.Build(2)}})
	require.NoError(t, err)

	docs := r.List()
	require.Len(t, docs, 2)
	assert.Equal(t, "first.pdf", docs[0].Name)
	assert.Equal(t, "second.pdf", docs[1].Name)
}

func TestIngestRejectsUnreadable(t *testing.T) {
	r := newRegistry()
	// starts like a PDF, so it sniffs as one, but has no usable structure
	results, err := r.Ingest(context.Background(), []FileSource{
		Bytes{FileName: "broken.pdf", Data: []byte("%PDF-1.4\nthis is not really a pdf\n")},
		failingSource{name: "gone.pdf"},
		Bytes{FileName: "fine.pdf", Data: testpdf.Build(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, Rejected, results[0].Outcome)
	assert.NotEmpty(t, results[0].Reason)
	assert.Equal(t, Rejected, results[1].Outcome)
	assert.Equal(t, Accepted, results[2].Outcome)
	assert.Equal(t, 1, r.Len())
}

func TestIngestCancelled(t *testing.T) {
	r := newRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Ingest(ctx, []FileSource{Bytes{FileName: "a.pdf", Data: testpdf.Build(1)}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.Len())
}

func TestRemoveAndReset(t *testing.T) {
	r := newRegistry()
	results, err := r.Ingest(context.Background(), []FileSource{
		Bytes{FileName: "a.pdf", Data: testpdf.Build(1)},
		Bytes{FileName: "b.pdf", Data: testpdf.Build(1)},
	})
	require.NoError(t, err)

	require.NoError(t, r.Remove(results[0].DocumentID))
	_, ok := r.Get(results[0].DocumentID)
	assert.False(t, ok)
	doc, ok := r.Get(results[1].DocumentID)
	require.True(t, ok)
	assert.Equal(t, "b.pdf", doc.Name)

	assert.ErrorIs(t, r.Remove("missing"), ErrNotFound)

	r.Reset()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.List())
}

func TestBytesReadAllCopies(t *testing.T) {
	data := []byte("%PDF-")
	b := Bytes{FileName: "x.pdf", Data: data}
	got, err := b.ReadAll()
	require.NoError(t, err)
	got[0] = 'X'
	assert.Equal(t, byte('%'), data[0])
}
