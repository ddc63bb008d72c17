package editor

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/neatpdf/internal/document"
	"github.com/local/neatpdf/internal/render"
)

// fakeDoc renders n blank pages; page failAt (if set) errors.
type fakeDoc struct {
	n      int
	failAt int
	calls  *int
	closed *bool
}

func (d fakeDoc) NumPage() int { return d.n }

func (d fakeDoc) Render(p int) (render.Thumbnail, error) {
	*d.calls++
	if p == d.failAt {
		return render.Thumbnail{}, errors.New("rasterizer exploded")
	}
	return render.Thumbnail{JPEG: []byte{byte(p)}, Width: 10, Height: 14}, nil
}

func (d fakeDoc) Close() error { *d.closed = true; return nil }

type fakeOpener struct {
	n       int
	failAt  int
	openErr error

	opens  int
	calls  int
	closed bool
}

func (o *fakeOpener) Open([]byte) (render.Doc, error) {
	o.opens++
	if o.openErr != nil {
		return nil, o.openErr
	}
	return fakeDoc{n: o.n, failAt: o.failAt, calls: &o.calls, closed: &o.closed}, nil
}

func testDoc(id string, pages int) document.SourceDocument {
	return document.SourceDocument{ID: id, Name: id + ".pdf", PageCount: pages, Data: []byte("%PDF-")}
}

func loaded(t *testing.T, pages int) *Editor {
	t.Helper()
	e := New(&fakeOpener{n: pages})
	_, err := e.Load(testDoc("doc", pages))
	require.NoError(t, err)
	return e
}

func ids(pages []PageDescriptor) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.ID
	}
	return out
}

func TestLoadYieldsPagesInOrder(t *testing.T) {
	o := &fakeOpener{n: 4}
	e := New(o)
	pages, err := e.Load(testDoc("abc", 4))
	require.NoError(t, err)

	want := []PageDescriptor{
		{ID: "abc-page-1", SourceID: "abc", PageNumber: 1, FileName: "abc.pdf", TotalPages: 4},
		{ID: "abc-page-2", SourceID: "abc", PageNumber: 2, FileName: "abc.pdf", TotalPages: 4},
		{ID: "abc-page-3", SourceID: "abc", PageNumber: 3, FileName: "abc.pdf", TotalPages: 4},
		{ID: "abc-page-4", SourceID: "abc", PageNumber: 4, FileName: "abc.pdf", TotalPages: 4},
	}
	if diff := cmp.Diff(want, pages, cmpopts.IgnoreFields(PageDescriptor{}, "Thumbnail")); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, o.opens, "document opened once")
	assert.Equal(t, 4, o.calls, "one render per page")
	assert.True(t, o.closed)
	assert.Equal(t, "abc", e.SourceID())
	assert.Equal(t, []byte{3}, pages[2].Thumbnail.JPEG)
}

func TestLoadRenderFailureLeavesEditorEmpty(t *testing.T) {
	o := &fakeOpener{n: 3, failAt: 2}
	e := New(o)
	e.pages = []PageDescriptor{{ID: "old-page-1"}}
	e.selected["old-page-1"] = struct{}{}

	pages, err := e.Load(testDoc("abc", 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderFailed)
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 2, rerr.PageNumber)

	assert.Empty(t, pages)
	assert.Zero(t, e.Len())
	assert.Zero(t, e.SelectedCount())
	assert.Empty(t, e.SourceID())
	assert.True(t, o.closed)
}

func TestLoadOpenFailure(t *testing.T) {
	e := New(&fakeOpener{openErr: errors.New("not a pdf")})
	_, err := e.Load(testDoc("abc", 1))
	assert.ErrorIs(t, err, ErrRenderFailed)
	assert.Zero(t, e.Len())
}

func TestToggle(t *testing.T) {
	e := loaded(t, 3)
	e.Toggle("doc-page-2")
	assert.True(t, e.IsSelected("doc-page-2"))
	e.Toggle("doc-page-2")
	assert.False(t, e.IsSelected("doc-page-2"))

	e.Toggle("nope")
	assert.Zero(t, e.SelectedCount())
}

func TestSelectRange(t *testing.T) {
	e := loaded(t, 5)
	e.Toggle("doc-page-5")
	e.SelectRange(2, 3)
	assert.Equal(t, []string{"doc-page-2", "doc-page-3", "doc-page-5"}, ids(e.Selected()))

	e.SelectRange(1, 1)
	assert.Equal(t, 4, e.SelectedCount())
}

func TestSelectRangeFollowsSequencePosition(t *testing.T) {
	e := loaded(t, 3)
	require.NoError(t, e.Reorder(2, 0))
	e.SelectRange(1, 1)
	assert.Equal(t, []string{"doc-page-3"}, ids(e.Selected()))
}

func TestSelectRangeInvalidIsNoop(t *testing.T) {
	for name, r := range map[string][2]int{
		"start after end":   {3, 2},
		"start below one":   {0, 2},
		"end past length":   {2, 6},
		"negative":          {-1, -1},
		"both out of range": {6, 7},
	} {
		t.Run(name, func(t *testing.T) {
			e := loaded(t, 5)
			e.Toggle("doc-page-1")
			e.SelectRange(r[0], r[1])
			assert.Equal(t, []string{"doc-page-1"}, ids(e.Selected()))
		})
	}
}

func TestSelectAllAndDeselectAll(t *testing.T) {
	e := loaded(t, 3)
	e.SelectAll()
	assert.Equal(t, 3, e.SelectedCount())
	e.DeselectAll()
	assert.Zero(t, e.SelectedCount())
}

func TestDeleteSelectedThenSelectAll(t *testing.T) {
	e := loaded(t, 5)
	e.Toggle("doc-page-2")
	e.Toggle("doc-page-4")

	assert.Equal(t, 2, e.DeleteSelected())
	assert.Zero(t, e.SelectedCount())
	assert.Equal(t, []int{1, 3, 5}, e.PageNumbers())

	e.SelectAll()
	assert.Equal(t, ids(e.Pages()), ids(e.Selected()))
}

func TestDeleteSelectedNothingSelected(t *testing.T) {
	e := loaded(t, 2)
	assert.Zero(t, e.DeleteSelected())
	assert.Equal(t, 2, e.Len())
}

func TestReorder(t *testing.T) {
	e := loaded(t, 4)
	require.NoError(t, e.Reorder(0, 3))
	assert.Equal(t, []int{2, 3, 4, 1}, e.PageNumbers())

	require.NoError(t, e.Reorder(3, 1))
	assert.Equal(t, []int{2, 1, 3, 4}, e.PageNumbers())

	require.NoError(t, e.Reorder(2, 2))
	assert.Equal(t, []int{2, 1, 3, 4}, e.PageNumbers())
}

func TestReorderOutOfRange(t *testing.T) {
	e := loaded(t, 3)
	for _, c := range [][2]int{{-1, 0}, {0, 3}, {3, 0}, {0, -2}} {
		assert.ErrorIs(t, e.Reorder(c[0], c[1]), ErrIndexOutOfRange)
	}
	assert.Equal(t, []int{1, 2, 3}, e.PageNumbers())
}

func TestReorderPreservesPages(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e := loaded(t, 12)
	before := ids(e.Pages())
	sort.Strings(before)

	for i := 0; i < 500; i++ {
		require.NoError(t, e.Reorder(rng.Intn(e.Len()), rng.Intn(e.Len())))
	}

	after := ids(e.Pages())
	sort.Strings(after)
	assert.Equal(t, before, after)
}

func TestSelectionSurvivesReorder(t *testing.T) {
	e := loaded(t, 4)
	e.Toggle("doc-page-1")
	e.Toggle("doc-page-3")
	require.NoError(t, e.Reorder(0, 3))
	assert.Equal(t, []string{"doc-page-3", "doc-page-1"}, ids(e.Selected()))
}

func TestPagesReturnsCopy(t *testing.T) {
	e := loaded(t, 2)
	pages := e.Pages()
	pages[0].PageNumber = 99
	p, ok := e.Page("doc-page-1")
	require.True(t, ok)
	assert.Equal(t, 1, p.PageNumber)

	_, ok = e.Page("missing")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	e := loaded(t, 2)
	e.SelectAll()
	e.Clear()
	assert.Zero(t, e.Len())
	assert.Zero(t, e.SelectedCount())
	assert.Empty(t, e.SourceID())
}
