package assembly

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/neatpdf/internal/testpdf"
)

// pageWidths reads back the width of every page, which identifies the source page.
func pageWidths(t *testing.T, data []byte) []int {
	t.Helper()
	widths, err := testpdf.Widths(data)
	require.NoError(t, err)
	return widths
}

func TestPageCount(t *testing.T) {
	a := New(Options{})
	n, err := a.PageCount(testpdf.Build(4))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPageCountCorrupt(t *testing.T) {
	a := New(Options{})
	_, err := a.PageCount([]byte("definitely not a pdf"))
	require.Error(t, err)
	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, OpPageCount, aerr.Op)

	_, err = a.PageCount(nil)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestExtractSingle(t *testing.T) {
	a := New(Options{})
	out, err := a.ExtractSingle(testpdf.Build(3), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{testpdf.PageWidth(2)}, pageWidths(t, out))
}

func TestExtractSingleOutOfRange(t *testing.T) {
	a := New(Options{})
	src := testpdf.Build(3)
	for _, p := range []int{0, 4, -1} {
		_, err := a.ExtractSingle(src, p)
		assert.ErrorIs(t, err, ErrPageOutOfRange, "page %d", p)
	}
}

func TestExtractManyKeepsRequestedOrder(t *testing.T) {
	a := New(Options{})
	src := testpdf.Build(4)

	// a 4-page document with page 1 moved to the end
	out, err := a.ExtractMany(src, []int{2, 3, 4, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{
		testpdf.PageWidth(2), testpdf.PageWidth(3), testpdf.PageWidth(4), testpdf.PageWidth(1),
	}, pageWidths(t, out))
}

func TestExtractManyDoesNotTouchSource(t *testing.T) {
	a := New(Options{})
	src := testpdf.Build(3)
	orig := append([]byte(nil), src...)

	_, err := a.ExtractMany(src, []int{3, 1})
	require.NoError(t, err)
	out, err := a.ExtractMany(src, []int{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, orig, src)
	assert.Equal(t, []int{testpdf.PageWidth(1), testpdf.PageWidth(2), testpdf.PageWidth(3)}, pageWidths(t, out))
}

func TestExtractManyEmpty(t *testing.T) {
	a := New(Options{})
	_, err := a.ExtractMany(testpdf.Build(2), nil)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestMergeAllConcatenatesInOrder(t *testing.T) {
	a := New(Options{})
	docA := testpdf.BuildWidths(101, 102, 103)
	docB := testpdf.BuildWidths(201, 202)

	out, err := a.MergeAll([][]byte{docA, docB})
	require.NoError(t, err)

	n, err := a.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{101, 102, 103, 201, 202}, pageWidths(t, out))
}

func TestMergeAllSingleDocument(t *testing.T) {
	a := New(Options{})
	out, err := a.MergeAll([][]byte{testpdf.Build(2)})
	require.NoError(t, err)
	n, err := a.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMergeAllErrors(t *testing.T) {
	a := New(Options{})
	_, err := a.MergeAll(nil)
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = a.MergeAll([][]byte{testpdf.Build(1), []byte("garbage")})
	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, OpMergeAll, aerr.Op)
}
