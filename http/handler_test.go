package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/filegate"
	"github.com/sagarc03/filegate/filesystem"
	filegatehttp "github.com/sagarc03/filegate/http"
	"github.com/sagarc03/filegate/metrics"
)

// MockService is a mock implementation of http.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Upload(ctx context.Context, req filegate.UploadRequest, content io.Reader) (filegate.StoredObject, error) {
	args := m.Called(ctx, req, content)
	return args.Get(0).(filegate.StoredObject), args.Error(1)
}

func (m *MockService) Download(ctx context.Context, key string) (io.ReadCloser, filegate.StoredObject, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Get(1).(filegate.StoredObject), args.Error(2)
}

func (m *MockService) List(ctx context.Context) ([]filegate.StoredObject, error) {
	args := m.Called(ctx)
	objs, _ := args.Get(0).([]filegate.StoredObject)
	return objs, args.Error(1)
}

func (m *MockService) Stat(ctx context.Context, key string) (filegate.StoredObject, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(filegate.StoredObject), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newHandler(t *testing.T, cfg filegatehttp.HandlerConfig) (http.Handler, *MockService) {
	t.Helper()
	service := new(MockService)
	return filegatehttp.NewHandler(&cfg, service).Router(), service
}

var notes = filegate.StoredObject{
	Key:          "notes.txt",
	Size:         11,
	ContentType:  "text/plain",
	LastModified: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	ETag:         "abc123",
}

// multipartBody builds a form with a single file part. An empty fieldName
// yields a form without a file field.
func multipartBody(t *testing.T, fieldName, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	require.NoError(t, mw.WriteField("comment", "ignored"))

	if fieldName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, filename))
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

// errorCloserSpy records how a download stream was closed.
type errorCloserSpy struct {
	io.Reader
	closed bool
	cause  error
}

func (c *errorCloserSpy) Close() error {
	c.closed = true
	return nil
}

func (c *errorCloserSpy) CloseWithError(err error) error {
	c.closed = true
	c.cause = err
	return nil
}

// brokenWriter accepts headers but fails every body write, like a
// connection the client has already closed.
type brokenWriter struct {
	header http.Header
	code   int
}

func (w *brokenWriter) Header() http.Header { return w.header }

func (w *brokenWriter) WriteHeader(code int) { w.code = code }

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("write: broken pipe")
}

// sizedMultipartBody builds a form whose file part carries its own
// Content-Length header.
func sizedMultipartBody(t *testing.T, filename, contentLength string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Length", contentLength)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

type nopCloser struct {
	io.Reader
	closed bool
}

func (c *nopCloser) Close() error {
	c.closed = true
	return nil
}

func TestHandler_Root(t *testing.T) {
	handler, _ := newHandler(t, filegatehttp.HandlerConfig{Version: "1.2.3"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"filegate is running","version":"1.2.3"}`, rec.Body.String())
}

func TestHandler_Health(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("Ping", mock.Anything).Return(nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("Ping", mock.Anything).Return(filegate.ErrStoreUnavailable)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"degraded"}`, rec.Body.String())
	})
}

func TestHandler_List(t *testing.T) {
	t.Run("both paths", func(t *testing.T) {
		for _, path := range []string{"/api/v1/files", "/api/v1/files/"} {
			handler, service := newHandler(t, filegatehttp.HandlerConfig{})
			service.On("List", mock.Anything).Return([]filegate.StoredObject{notes}, nil)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			require.Equal(t, http.StatusOK, rec.Code, path)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got []filegate.StoredObject
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			require.Len(t, got, 1)
			assert.Equal(t, "notes.txt", got[0].Key)
			assert.True(t, notes.LastModified.Equal(got[0].LastModified))
		}
	})

	t.Run("empty bucket is an empty array", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("List", mock.Anything).Return([]filegate.StoredObject{}, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("store unavailable", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("List", mock.Anything).Return(nil, fmt.Errorf("list objects: %w", filegate.ErrStoreUnavailable))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error":"store_unavailable"`)
	})
}

func TestHandler_Upload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})

		var received []byte
		service.On("Upload", mock.Anything, filegate.UploadRequest{Key: "notes.txt", Size: -1, ContentType: "text/plain"}, mock.Anything).
			Run(func(args mock.Arguments) {
				received, _ = io.ReadAll(args.Get(2).(io.Reader))
			}).
			Return(notes, nil)

		body, ct := multipartBody(t, "file", "notes.txt", "application/octet-stream", []byte("hello world"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "hello world", string(received))

		var got map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, "notes.txt", got["key"])
		assert.Equal(t, float64(11), got["size"])
		assert.Equal(t, "text/plain", got["contentType"])
		assert.Equal(t, "2025-01-02T03:04:05Z", got["lastModified"])
		service.AssertExpectations(t)
	})

	t.Run("content type sniffed when name has no extension", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

		service.On("Upload", mock.Anything, mock.MatchedBy(func(req filegate.UploadRequest) bool {
			return req.Key == "image" && req.ContentType == "image/png"
		}), mock.Anything).Return(filegate.StoredObject{Key: "image"}, nil)

		body, ct := multipartBody(t, "file", "image", "", png)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		service.AssertExpectations(t)
	})

	t.Run("path traversal rejected before service", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})

		body, ct := multipartBody(t, "file", "../secret", "", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error":"invalid_request"`)
		service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing file field", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})

		body, ct := multipartBody(t, "", "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty file name", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})

		body, ct := multipartBody(t, "file", "", "", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not multipart", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", strings.NewReader("raw"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("content length over limit", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{MaxUploadSize: 10})

		big := bytes.Repeat([]byte("x"), 2<<20)
		body, ct := multipartBody(t, "file", "big.bin", "", big)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error":"size_limit_exceeded"`)
		service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("part content length passed as size", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("Upload", mock.Anything, filegate.UploadRequest{Key: "notes.txt", Size: 11, ContentType: "text/plain"}, mock.Anything).
			Return(notes, nil)

		body, ct := sizedMultipartBody(t, "notes.txt", "11", []byte("hello world"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		service.AssertExpectations(t)
	})

	t.Run("unusable part content length is unknown size", func(t *testing.T) {
		for _, v := range []string{"abc", "-4"} {
			handler, service := newHandler(t, filegatehttp.HandlerConfig{})
			service.On("Upload", mock.Anything, mock.MatchedBy(func(req filegate.UploadRequest) bool {
				return req.Size == -1
			}), mock.Anything).Return(notes, nil)

			body, ct := sizedMultipartBody(t, "notes.txt", v, []byte("hello world"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusCreated, rec.Code, v)
			service.AssertExpectations(t)
		}
	})

	t.Run("part content length disagreeing with body", func(t *testing.T) {
		root, err := os.OpenRoot(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = root.Close() })

		store, err := filesystem.New(root, "files")
		require.NoError(t, err)
		gw, err := filegate.NewGateway(store, filegate.GatewayConfig{})
		require.NoError(t, err)
		require.NoError(t, gw.EnsureBucket(context.Background()))

		handler := filegatehttp.NewHandler(&filegatehttp.HandlerConfig{}, gw).Router()

		for _, declared := range []string{"5", "20"} {
			body, ct := sizedMultipartBody(t, "notes.txt", declared, []byte("hello world"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, declared)
			assert.Contains(t, rec.Body.String(), `"error":"invalid_request"`, declared)
		}

		_, err = gw.Stat(context.Background(), "notes.txt")
		assert.ErrorIs(t, err, filegate.ErrNotFound)
	})

	tt := []struct {
		Name     string
		Err      error
		WantCode int
		WantKind string
	}{
		{Name: "conflict", Err: filegate.ErrAlreadyExists, WantCode: http.StatusConflict, WantKind: "already_exists"},
		{Name: "too large", Err: filegate.ErrSizeLimitExceeded, WantCode: http.StatusRequestEntityTooLarge, WantKind: "size_limit_exceeded"},
		{Name: "invalid", Err: filegate.ErrInvalidInput, WantCode: http.StatusBadRequest, WantKind: "invalid_request"},
		{Name: "store down", Err: filegate.ErrStoreUnavailable, WantCode: http.StatusServiceUnavailable, WantKind: "store_unavailable"},
		{Name: "unexpected", Err: errors.New("boom"), WantCode: http.StatusInternalServerError, WantKind: "internal_error"},
	}

	for _, tc := range tt {
		t.Run("service error "+tc.Name, func(t *testing.T) {
			handler, service := newHandler(t, filegatehttp.HandlerConfig{})
			service.On("Upload", mock.Anything, mock.Anything, mock.Anything).
				Return(filegate.StoredObject{}, fmt.Errorf("upload %q: %w", "notes.txt", tc.Err))

			body, ct := multipartBody(t, "file", "notes.txt", "", []byte("hello world"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.WantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":"`+tc.WantKind+`"`)
		})
	}
}

func TestHandler_Download(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		content := &nopCloser{Reader: strings.NewReader("hello world")}
		service.On("Download", mock.Anything, "notes.txt").Return(content, notes, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/download/notes.txt", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello world", rec.Body.String())
		assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
		assert.Equal(t, "11", rec.Header().Get("Content-Length"))
		assert.Equal(t, `attachment; filename=notes.txt`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "Thu, 02 Jan 2025 03:04:05 GMT", rec.Header().Get("Last-Modified"))
		assert.Equal(t, `"abc123"`, rec.Header().Get("ETag"))
		assert.True(t, content.closed, "stream must be closed")
	})

	t.Run("escaped key", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		obj := filegate.StoredObject{Key: "100% done.txt", Size: 2, ContentType: "text/plain"}
		service.On("Download", mock.Anything, "100% done.txt").Return(&nopCloser{Reader: strings.NewReader("ok")}, obj, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/download/100%25%20done.txt", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `attachment; filename="100% done.txt"`, rec.Header().Get("Content-Disposition"))
	})

	t.Run("encoded slash rejected", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/download/..%2Fsecret", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		service.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("Download", mock.Anything, "missing.txt").Return(nil, filegate.StoredObject{}, filegate.ErrNotFound)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/download/missing.txt", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"not_found","message":"Object not found"}`, rec.Body.String())
	})

	t.Run("client write failure reported to stream", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		content := &errorCloserSpy{Reader: strings.NewReader("hello world")}
		service.On("Download", mock.Anything, "notes.txt").Return(content, notes, nil)

		w := &brokenWriter{header: http.Header{}}
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files/download/notes.txt", nil))

		assert.Equal(t, http.StatusOK, w.code)
		require.Error(t, content.cause)
		assert.ErrorIs(t, content.cause, context.Canceled)
	})

	t.Run("complete download closes without error", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		content := &errorCloserSpy{Reader: strings.NewReader("hello world")}
		service.On("Download", mock.Anything, "notes.txt").Return(content, notes, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/download/notes.txt", nil))

		assert.Equal(t, "hello world", rec.Body.String())
		assert.True(t, content.closed)
		assert.NoError(t, content.cause)
	})

	t.Run("cancelled request writes nothing", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("Download", mock.Anything, "notes.txt").Return(nil, filegate.StoredObject{}, context.Canceled)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/files/download/notes.txt", nil).WithContext(ctx)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Body.String())
	})
}

func TestHandler_Info(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("Stat", mock.Anything, "notes.txt").Return(notes, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/notes.txt/info", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"key":"notes.txt","size":11,"contentType":"text/plain","lastModified":"2025-01-02T03:04:05Z","etag":"abc123"}`, rec.Body.String())
	})

	t.Run("not found", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("Stat", mock.Anything, "missing.txt").Return(filegate.StoredObject{}, filegate.ErrNotFound)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/missing.txt/info", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("traversal rejected", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/..%2Fsecret/info", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		service.AssertNotCalled(t, "Stat", mock.Anything, mock.Anything)
	})
}

func TestHandler_Delete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("Delete", mock.Anything, "notes.txt").Return(nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/files/notes.txt", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"key":"notes.txt","deleted":true}`, rec.Body.String())
	})

	t.Run("not found", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})
		service.On("Delete", mock.Anything, "missing.txt").Return(fmt.Errorf("delete: %w", filegate.ErrNotFound))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/files/missing.txt", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("double dots rejected", func(t *testing.T) {
		handler, service := newHandler(t, filegatehttp.HandlerConfig{})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/files/..", nil))

		assert.NotEqual(t, http.StatusOK, rec.Code)
		service.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestHandler_UnknownRoute(t *testing.T) {
	handler, _ := newHandler(t, filegatehttp.HandlerConfig{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/nothing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not_found"`)
}

func TestHandler_CORS(t *testing.T) {
	handler, service := newHandler(t, filegatehttp.HandlerConfig{
		CORS: filegatehttp.CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE"},
		},
	})
	service.On("Ping", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_Metrics(t *testing.T) {
	m := metrics.New()
	handler, service := newHandler(t, filegatehttp.HandlerConfig{Metrics: m})
	service.On("Ping", mock.Anything).Return(nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `filegate_http_requests_total{code="200",method="GET"} 1`)
}

func TestHandler_MetricsDisabled(t *testing.T) {
	handler, _ := newHandler(t, filegatehttp.HandlerConfig{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
