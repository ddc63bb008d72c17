// Package render rasterizes PDF pages into JPEG thumbnails with go-fitz.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/local/neatpdf/internal/metrics"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Thumbnail is a JPEG preview of one page.
type Thumbnail struct {
	JPEG   []byte
	Width  int
	Height int
}

// Doc is an opened document that can rasterize its pages.
type Doc interface {
	NumPage() int
	// Render rasterizes page pageNumber (1-based).
	Render(pageNumber int) (Thumbnail, error)
	Close() error
}

// Options configures thumbnail output.
type Options struct {
	DPI      float64
	MaxWidth int
	Quality  int
	Color    ColorMode
}

// Renderer opens in-memory PDFs with go-fitz.
type Renderer struct {
	opts Options
}

// New creates a Renderer, filling in defaults for zero options.
func New(opts Options) *Renderer {
	if opts.DPI <= 0 {
		opts.DPI = 36
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	if opts.Color != ColorGray {
		opts.Color = ColorRGB
	}
	return &Renderer{opts: opts}
}

// Open parses data. The returned Doc must be closed.
func (r *Renderer) Open(data []byte) (Doc, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &fitzDoc{doc: doc, opts: r.opts}, nil
}

type fitzDoc struct {
	doc  *fitz.Document
	opts Options
}

func (d *fitzDoc) NumPage() int { return d.doc.NumPage() }

func (d *fitzDoc) Close() error { return d.doc.Close() }

func (d *fitzDoc) Render(pageNumber int) (th Thumbnail, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRender(err, time.Since(start)) }()

	if pageNumber < 1 || pageNumber > d.doc.NumPage() {
		return Thumbnail{}, fmt.Errorf("page %d out of range (document has %d pages)", pageNumber, d.doc.NumPage())
	}

	// go-fitz uses 0-based indexing
	img, err := d.doc.ImageDPI(pageNumber-1, d.opts.DPI)
	if err != nil {
		return Thumbnail{}, fmt.Errorf("failed to render page %d: %w", pageNumber, err)
	}

	final := fit(img, d.opts.MaxWidth, d.opts.Color)
	bounds := final.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, final, &jpeg.Options{Quality: d.opts.Quality}); err != nil {
		return Thumbnail{}, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("page", pageNumber).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("jpeg_size", buf.Len()).
		Str("color", string(d.opts.Color)).
		Msg("rendered page thumbnail")

	return Thumbnail{JPEG: buf.Bytes(), Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// fit scales src down to maxWidth (keeping the aspect ratio) and converts it
// to the requested color mode. maxWidth <= 0 disables scaling.
func fit(src image.Image, maxWidth int, mode ColorMode) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth > 0 && w > maxWidth {
		h = max(1, h*maxWidth/w)
		w = maxWidth
	}
	rect := image.Rect(0, 0, w, h)

	var dst draw.Image
	if mode == ColorGray {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, rect, src, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, rect, src, b, draw.Src, nil)
	}
	return dst
}
