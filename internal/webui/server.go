// Package webui exposes the flat-file manager over HTTP: a small upload form
// plus a JSON API.
//
// Routes:
//
//	GET  /                    → upload form
//	GET  /flatfile            → all stored descriptors
//	POST /flatfile            → multipart "file" upload; profile and store
//	GET  /flatfile/{id}       → one descriptor
//	GET  /flatfile/{id}/data  → the file's rows
//	GET  /flatfile/{id}/ddl   → DROP, CREATE and COPY as text/plain
package webui

import (
	"context"
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
	"github.com/jkramsay/flat-file-manager/internal/datasource/file"
	"github.com/jkramsay/flat-file-manager/internal/flatfile"
	"github.com/jkramsay/flat-file-manager/internal/logging"
	"github.com/jkramsay/flat-file-manager/internal/store"
)

const maxMemory = 32 << 20

// Config controls server startup.
type Config struct {
	Addr string
}

// Server serves the HTTP API.
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	tmpl    *template.Template
	svc     *flatfile.Service
	store   store.Store
	uploads *file.Uploads
	log     *zap.Logger
}

// NewServer constructs a Server with routes and the embedded template.
func NewServer(cfg Config, svc *flatfile.Service, st store.Store, uploads *file.Uploads, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		tmpl:    template.Must(template.New("index").Parse(indexHTML)),
		svc:     svc,
		store:   st,
		uploads: uploads,
		log:     log,
	}
	s.routes()
	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /flatfile", s.handleList)
	s.mux.HandleFunc("POST /flatfile", s.handleUpload)
	s.mux.HandleFunc("GET /flatfile/{id}", s.handleGet)
	s.mux.HandleFunc("GET /flatfile/{id}/data", s.handleData)
	s.mux.HandleFunc("GET /flatfile/{id}/ddl", s.handleDDL)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.tmpl.Execute(w, nil); err != nil {
		s.log.Error("template error", zap.Error(err))
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, all)
}

type uploadResponse struct {
	LocalFilePath string `json:"local_file_path"`
	CleanFilename string `json:"clean_filename"`
	UniqueID      string `json:"unique_id"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "expected multipart form: "+err.Error())
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "NO_FILE", "form field 'file' is required")
		return
	}
	defer f.Close()

	ctx := r.Context()
	path, err := s.uploads.Save(ctx, f)
	if errors.Is(err, file.ErrTooLarge) {
		s.writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error())
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	clean := file.SecureFilename(hdr.Filename)
	d, err := s.svc.ProfileFile(ctx, path, clean)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Persist(ctx, s.store, d); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, uploadResponse{
		LocalFilePath: path,
		CleanFilename: clean,
		UniqueID:      d.ID(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.store.Get(ctx, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recs, err := s.svc.Records(ctx, d.LocalFilePath)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleDDL(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.svc.Statements(d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(st.String()))
}

// fail maps missing descriptors and missing source files to 404 and
// everything else to 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.IsNotFound(err) || errors.Is(err, apperrors.ErrSourceNotFound) {
		id := r.PathValue("id")
		s.writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "File "+id+" not found")
		return
	}
	msg := logging.SanitizeError(err)
	s.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("error", msg))
	s.writeError(w, http.StatusInternalServerError, "PROCESSING_ERROR", msg)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Error("encode response", zap.Error(err))
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// indexHTML is the upload form.
//
//go:embed index.tmpl.html
var indexHTML string
