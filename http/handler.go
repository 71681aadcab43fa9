package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sagarc03/filegate"
	"github.com/sagarc03/filegate/metrics"
)

// multipartOverhead is the allowance for multipart boundaries and part
// headers on top of the maximum file size.
const multipartOverhead int64 = 1 << 20

// sniffLen is the number of leading bytes inspected when the file name and
// declared part type do not settle the content type.
const sniffLen = 3072

// fileField is the multipart form field carrying the upload.
const fileField = "file"

type Service interface {
	Upload(ctx context.Context, req filegate.UploadRequest, content io.Reader) (filegate.StoredObject, error)
	Download(ctx context.Context, key string) (io.ReadCloser, filegate.StoredObject, error)
	List(ctx context.Context) ([]filegate.StoredObject, error)
	Stat(ctx context.Context, key string) (filegate.StoredObject, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	MaxUploadSize int64
	CORS          CORSConfig
	Metrics       *metrics.Metrics // nil disables request metrics and /metrics
	Version       string
}

// Handler provides HTTP handlers for file gateway operations.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = filegate.DefaultMaxUploadSize
	}
	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler serving the file API under /api/v1/files
// plus the health, root and (optionally) metrics endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.Metrics != nil {
		r.Use(h.config.Metrics.Middleware)
	}
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(EscapedRoutePath)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	if h.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.config.Metrics.Handler())
	}

	r.Route("/api/v1/files", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/upload", h.handleUpload)
		// A static segment outranks {key}, so GET /download/info is a
		// download of "info", never the info of "download".
		r.Get("/download/{key}", h.handleDownload)
		r.Get("/{key}/info", h.handleInfo)
		r.Delete("/{key}", h.handleDelete)
	})

	return r
}

type rootResponse struct {
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, rootResponse{Message: "filegate is running", Version: h.config.Version})
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", "error", err)
		_ = WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
		return
	}
	_ = WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	objects, err := h.service.List(r.Context())
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, objects)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := h.config.MaxUploadSize + multipartOverhead
	if r.ContentLength > limit {
		WriteError(w, http.StatusRequestEntityTooLarge, "size_limit_exceeded",
			fmt.Sprintf("File too large. Maximum size is %d bytes", h.config.MaxUploadSize))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mr, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart/form-data body")
		return
	}

	part, filename, err := nextFilePart(mr)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	defer func() { _ = part.Close() }()

	if !filegate.IsValidKey(filename) {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid file name")
		return
	}

	br := bufio.NewReaderSize(part, sniffLen)
	// A short or failing read surfaces again when the gateway consumes br.
	head, _ := br.Peek(sniffLen)

	req := filegate.UploadRequest{
		Key:         filename,
		Size:        partSize(part),
		ContentType: filegate.ResolveContentType(filename, part.Header.Get("Content-Type"), head),
	}

	obj, err := h.service.Upload(r.Context(), req, br)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, obj)
}

// nextFilePart advances mr to the "file" form field and returns it with its
// raw file name. Go's Part.FileName applies filepath.Base, which would turn
// "../secret" into "secret" and hide the traversal attempt, so the
// Content-Disposition header is parsed here instead.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, string, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", fmt.Errorf("%w: missing %q form field", filegate.ErrInvalidInput, fileField)
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, "", fmt.Errorf("%w: %w", filegate.ErrSizeLimitExceeded, err)
			}
			return nil, "", fmt.Errorf("%w: malformed multipart body: %w", filegate.ErrInvalidInput, err)
		}

		_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if err != nil || params["name"] != fileField {
			_ = part.Close()
			continue
		}

		filename := params["filename"]
		if filename == "" {
			_ = part.Close()
			return nil, "", fmt.Errorf("%w: missing file name", filegate.ErrInvalidInput)
		}
		return part, filename, nil
	}
}

// partSize returns the part's declared Content-Length, or -1.
func partSize(part *multipart.Part) int64 {
	v := part.Header.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	content, obj, err := h.service.Download(r.Context(), key)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	defer func() { _ = content.Close() }()

	header := w.Header()
	header.Set("Content-Type", obj.ContentType)
	header.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	header.Set("Content-Disposition", contentDisposition(key))
	if !obj.LastModified.IsZero() {
		header.Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	if obj.ETag != "" {
		header.Set("ETag", `"`+obj.ETag+`"`)
	}
	w.WriteHeader(http.StatusOK)

	// Headers are gone; on failure the short body against Content-Length
	// makes net/http drop the connection, which is all the client can see.
	n, err := io.Copy(w, content)
	if err != nil {
		slog.Warn("download interrupted", "key", key, "written", n, "size", obj.Size, "error", err)
		if c, ok := content.(errorCloser); ok {
			_ = c.CloseWithError(fmt.Errorf("%w: %w", context.Canceled, err))
		}
	}
}

// errorCloser is implemented by gateway download streams.
type errorCloser interface {
	CloseWithError(err error) error
}

func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	obj, err := h.service.Stat(r.Context(), key)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, obj)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), key); err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, filegate.DeleteResult{Key: key, Deleted: true})
}

// keyParam decodes and validates the {key} route parameter. Routing runs on
// the escaped path (see EscapedRoutePath), so an encoded slash arrives here
// as "%2F" and is decoded into a key that validation rejects.
func keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || !filegate.IsValidKey(key) {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid key")
		return "", false
	}
	return key, true
}
