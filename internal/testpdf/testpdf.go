// Package testpdf builds tiny, valid PDF documents in memory for tests.
//
// Page i (1-based) of a generated document is PageWidth(i) points wide and
// PageHeight points tall, and shows the text "Page i". The distinct widths let
// tests identify pages after they were reordered, extracted or merged.
package testpdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageHeight is the height of every generated page, in points.
const PageHeight = 300

// PageWidth returns the width of page i of a generated document.
func PageWidth(i int) int { return 200 + 10*i }

// Build returns an n-page PDF.
func Build(n int) []byte {
	widths := make([]int, n)
	for i := range widths {
		widths[i] = PageWidth(i + 1)
	}
	return BuildWidths(widths...)
}

// BuildWidths returns a PDF with one page per width, in order.
func BuildWidths(widths ...int) []byte {
	var buf bytes.Buffer
	// object numbers: 1 catalog, 2 page tree, 3 font, then a page/content pair per page
	total := 3 + 2*len(widths)
	offsets := make([]int, total+1)

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	obj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	kids := new(bytes.Buffer)
	for i := range widths {
		fmt.Fprintf(kids, "%d 0 R ", 4+2*i)
	}

	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", bytes.TrimSpace(kids.Bytes()), len(widths)))
	obj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, w := range widths {
		pageNum, contentNum := 4+2*i, 5+2*i
		obj(pageNum, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			w, PageHeight, contentNum))
		content := fmt.Sprintf("BT /F1 24 Tf 20 140 Td (Page %d) Tj ET", i+1)
		obj(contentNum, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", total+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= total; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xref)
	return buf.Bytes()
}

// Widths reads back the rounded width of every page of data, in page order.
func Widths(data []byte) ([]int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	dims, err := api.PageDims(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d.Width + 0.5)
	}
	return out, nil
}
