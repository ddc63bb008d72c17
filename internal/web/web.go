package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/neatpdf/internal/assembly"
	"github.com/local/neatpdf/internal/document"
	"github.com/local/neatpdf/internal/editor"
	"github.com/local/neatpdf/internal/metrics"
	"github.com/local/neatpdf/internal/session"
	"github.com/local/neatpdf/internal/view"
)

//go:embed templates/*.html
var templates embed.FS

// The page offers Merge once this many documents are listed.
const minMergeDocuments = 2

type Options struct {
	MaxUploadMB int
}

type Web struct {
	tpl       *template.Template
	sess      *session.Session
	outbox    *Outbox
	maxUpload int64
}

func New(sess *session.Session, outbox *Outbox, opts Options) *Web {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 64
	}
	return &Web{
		tpl:       template.Must(template.ParseFS(templates, "templates/*.html")),
		sess:      sess,
		outbox:    outbox,
		maxUpload: int64(opts.MaxUploadMB) << 20,
	}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", w.handleIndex)
	mux.HandleFunc("GET /health", func(wr http.ResponseWriter, r *http.Request) { wr.WriteHeader(http.StatusOK); _, _ = wr.Write([]byte("ok")) })
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/state", w.handleState)
	mux.HandleFunc("POST /api/reset", w.handleReset)
	mux.HandleFunc("POST /api/view/merge", w.action(w.sess.ChooseMerge))
	mux.HandleFunc("POST /api/view/split", w.action(w.sess.ChooseSplit))
	mux.HandleFunc("POST /api/view/back", w.action(w.sess.Back))

	mux.HandleFunc("POST /api/documents", w.handleUpload)
	mux.HandleFunc("DELETE /api/documents/{id}", w.handleRemove)
	mux.HandleFunc("POST /api/documents/{id}/edit", w.handleOpen)

	mux.HandleFunc("POST /api/pages/toggle", w.handleToggle)
	mux.HandleFunc("POST /api/pages/range", w.handleRange)
	mux.HandleFunc("POST /api/pages/select-all", w.action(w.sess.SelectAll))
	mux.HandleFunc("POST /api/pages/deselect-all", w.action(w.sess.DeselectAll))
	mux.HandleFunc("POST /api/pages/delete-selected", w.action(w.sess.DeleteSelected))
	mux.HandleFunc("POST /api/pages/reorder", w.handleReorder)

	mux.HandleFunc("POST /api/merge", w.produce(w.sess.Merge))
	mux.HandleFunc("POST /api/export/separate", w.produce(w.sess.ExportSelectedSeparately))
	mux.HandleFunc("POST /api/export/selected", w.produce(w.sess.ExportSelectedAsOne))
	mux.HandleFunc("POST /api/export/all", w.produce(w.sess.ExportAll))

	mux.HandleFunc("GET /download/{token}", w.handleDownload)
	mux.HandleFunc("GET /thumbnails/{pageID}", w.handleThumbnail)
}

func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := map[string]any{"MaxUploadMB": w.maxUpload >> 20, "MinMergeDocuments": minMergeDocuments}
	if err := w.tpl.ExecuteTemplate(wr, "index.html", data); err != nil {
		log.Error().Err(err).Msg("render index failed")
	}
}

func (w *Web) handleState(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, w.sess.Snapshot())
}

func (w *Web) handleReset(wr http.ResponseWriter, r *http.Request) {
	w.reply(wr, w.sess.Reset())
}

// action adapts a session call without input.
func (w *Web) action(fn func() error) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		w.reply(wr, fn())
	}
}

// produce adapts a session call that may deliver files to the outbox.
func (w *Web) produce(fn func(context.Context) ([]string, error)) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if _, err := fn(r.Context()); err != nil {
			writeError(wr, err)
			return
		}
		writeJSON(wr, http.StatusOK, map[string]any{
			"downloads": w.outbox.Announce(),
			"state":     w.sess.Snapshot(),
		})
	}
}

func (w *Web) reply(wr http.ResponseWriter, err error) {
	if err != nil {
		writeError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, w.sess.Snapshot())
}

func (w *Web) handleUpload(wr http.ResponseWriter, r *http.Request) {
	tooLarge := errorBody{Error: fmt.Sprintf("upload exceeds %d MB", w.maxUpload>>20)}
	if r.ContentLength > w.maxUpload {
		writeJSON(wr, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(wr, r.Body, w.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(wr, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		writeJSON(wr, http.StatusBadRequest, errorBody{Error: "invalid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(wr, http.StatusBadRequest, errorBody{Error: "no files in field \"files\""})
		return
	}
	files := make([]document.FileSource, len(headers))
	for i, h := range headers {
		files[i] = multipartFile{h}
	}
	results, err := w.sess.Upload(r.Context(), files)
	if err != nil {
		writeError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, map[string]any{"results": results, "state": w.sess.Snapshot()})
}

func (w *Web) handleRemove(wr http.ResponseWriter, r *http.Request) {
	w.reply(wr, w.sess.RemoveDocument(r.PathValue("id")))
}

func (w *Web) handleOpen(wr http.ResponseWriter, r *http.Request) {
	w.reply(wr, w.sess.OpenDocument(r.Context(), r.PathValue("id")))
}

type toggleReq struct {
	ID string `json:"id"`
}

type rangeReq struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type reorderReq struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (w *Web) handleToggle(wr http.ResponseWriter, r *http.Request) {
	var req toggleReq
	if !decode(wr, r, &req) {
		return
	}
	w.reply(wr, w.sess.Toggle(req.ID))
}

func (w *Web) handleRange(wr http.ResponseWriter, r *http.Request) {
	var req rangeReq
	if !decode(wr, r, &req) {
		return
	}
	w.reply(wr, w.sess.SelectRange(req.Start, req.End))
}

func (w *Web) handleReorder(wr http.ResponseWriter, r *http.Request) {
	var req reorderReq
	if !decode(wr, r, &req) {
		return
	}
	w.reply(wr, w.sess.Reorder(req.From, req.To))
}

func (w *Web) handleDownload(wr http.ResponseWriter, r *http.Request) {
	name, data, ok := w.outbox.Take(r.PathValue("token"))
	if !ok {
		writeJSON(wr, http.StatusNotFound, errorBody{Error: "download not found"})
		return
	}
	wr.Header().Set("Content-Type", "application/pdf")
	wr.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	wr.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = wr.Write(data)
}

func (w *Web) handleThumbnail(wr http.ResponseWriter, r *http.Request) {
	p, ok := w.sess.Page(r.PathValue("pageID"))
	if !ok || len(p.Thumbnail.JPEG) == 0 {
		writeJSON(wr, http.StatusNotFound, errorBody{Error: "page not found"})
		return
	}
	wr.Header().Set("Content-Type", "image/jpeg")
	wr.Header().Set("Cache-Control", "no-cache")
	_, _ = wr.Write(p.Thumbnail.JPEG)
}

// multipartFile exposes an uploaded part as a document.FileSource.
type multipartFile struct {
	h *multipart.FileHeader
}

func (f multipartFile) Name() string { return f.h.Filename }

func (f multipartFile) ReadAll() ([]byte, error) {
	file, err := f.h.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

type errorBody struct {
	Error string `json:"error"`
}

func decode(wr http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v); err != nil {
		writeJSON(wr, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return false
	}
	return true
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	_ = json.NewEncoder(wr).Encode(v)
}

func writeError(wr http.ResponseWriter, err error) {
	writeJSON(wr, statusFor(err), errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	var aerr *assembly.Error
	switch {
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrNotAvailable),
		errors.Is(err, view.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, document.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrRenderFailed),
		errors.Is(err, assembly.ErrNoInput),
		errors.Is(err, assembly.ErrPageOutOfRange),
		errors.As(err, &aerr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// LogRequests writes one log line per request.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: wr, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		ev := log.Debug()
		if rec.status >= 500 {
			ev = log.Error()
		}
		ev.Str("method", r.Method).Str("path", r.URL.Path).Int("status", rec.status).
			Dur("took", time.Since(start)).Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
