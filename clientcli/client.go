package clientcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds how long the client waits for response headers.
	// Bodies are streamed and not subject to it.
	DefaultTimeout = 30 * time.Second

	filesPath = "/api/v1/files"
)

// Client performs operations against a filegate server.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	c := &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: &http.Client{Transport: transport},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Endpoint returns the normalized server URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Upload uploads each local file. Failures are recorded per file and do not
// stop the remaining uploads; the returned error is reserved for invalid
// options and cancellation.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if len(opts.LocalPaths) == 0 {
		return nil, fmt.Errorf("upload: %w", ErrNoPaths)
	}
	if opts.Name != "" && len(opts.LocalPaths) > 1 {
		return nil, errors.New("upload: a file name can only be given for a single file")
	}

	results := make([]UploadResult, 0, len(opts.LocalPaths))
	for _, localPath := range opts.LocalPaths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if localPath == "" {
			results = append(results, UploadResult{Err: ErrEmptyPath})
			continue
		}

		name := opts.Name
		if name == "" {
			name = filepath.Base(localPath)
		}

		obj, err := c.uploadSingle(ctx, localPath, name)
		results = append(results, UploadResult{LocalPath: localPath, ObjectInfo: obj, Err: err})
	}

	return results, nil
}

// uploadSingle streams one file as multipart/form-data. The body is produced
// through a pipe so the file is never held in memory.
func (c *Client) uploadSingle(ctx context.Context, localPath, name string) (ObjectInfo, error) {
	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%s is a directory", localPath)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreatePart(filePartHeader(name))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+filesPath+"/upload", pr)
	if err != nil {
		_ = pr.Close()
		return ObjectInfo{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var obj ObjectInfo
	if err := c.doJSON(req, http.StatusCreated, &obj); err != nil {
		_ = pr.Close()
		return ObjectInfo{}, err
	}
	return obj, nil
}

// filePartHeader builds the headers of the "file" form field. The content
// type is only a hint; the server sniffs the content as well.
func filePartHeader(name string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": name,
	}))
	h.Set("Content-Type", detectContentType(name))
	return h
}

// Download fetches a file from the server.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.Key == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL("/download/", opts.Key, ""), http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &DownloadResult{
		Key:         opts.Key,
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}
	defer func() { _ = resp.Body.Close() }()

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = opts.Key
	}
	result.LocalPath = localPath

	if dir := filepath.Dir(localPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create directory: %w", err)
		}
	}

	file, err := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return nil, nil, fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(file, resp.Body)
	if err == nil && resp.ContentLength >= 0 && written != resp.ContentLength {
		err = io.ErrUnexpectedEOF
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(localPath)
		return nil, nil, fmt.Errorf("write file: %w", err)
	}

	result.Size = written
	return result, nil, nil
}

// List returns every object in the bucket.
func (c *Client) List(ctx context.Context) (*ListResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+filesPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var items []ObjectInfo
	if err := c.doJSON(req, http.StatusOK, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []ObjectInfo{}
	}
	return &ListResult{Items: items}, nil
}

// Info returns the metadata of a single object.
func (c *Client) Info(ctx context.Context, key string) (*ObjectInfo, error) {
	if key == "" {
		return nil, fmt.Errorf("info: %w", ErrEmptyPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL("/", key, "/info"), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var obj ObjectInfo
	if err := c.doJSON(req, http.StatusOK, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// Delete deletes one or more files from the server.
// Continues on error, collecting results for all keys.
func (c *Client) Delete(ctx context.Context, opts DeleteOptions) ([]DeleteResult, error) {
	if len(opts.Keys) == 0 {
		return nil, ErrNoPaths
	}

	results := make([]DeleteResult, 0, len(opts.Keys))
	for _, key := range opts.Keys {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, c.deleteSingle(ctx, key))
	}

	return results, nil
}

func (c *Client) deleteSingle(ctx context.Context, key string) DeleteResult {
	if key == "" {
		return DeleteResult{Err: ErrEmptyPath}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.fileURL("/", key, ""), http.NoBody)
	if err != nil {
		return DeleteResult{Key: key, Err: fmt.Errorf("create request: %w", err)}
	}

	var resp DeleteResult
	if err := c.doJSON(req, http.StatusOK, &resp); err != nil {
		return DeleteResult{Key: key, Err: err}
	}
	return DeleteResult{Key: key, Deleted: resp.Deleted}
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// HasUploadErrors returns true if any upload failed.
func HasUploadErrors(results []UploadResult) bool {
	for i := range results {
		if results[i].Err != nil {
			return true
		}
	}
	return false
}

// Health queries /health. A degraded server is reported through the
// result, not as an error.
func (c *Client) Health(ctx context.Context) (*HealthResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, parseServerError(resp.StatusCode, body)
	}

	result := &HealthResult{Endpoint: c.endpoint}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	result.Endpoint = c.endpoint
	return result, nil
}

// doJSON executes req and decodes a response with the wanted status into v.
func (c *Client) doJSON(req *http.Request, want int, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		return parseServerError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// fileURL builds a URL under /api/v1/files with key escaped as a single
// path segment.
func (c *Client) fileURL(prefix, key, suffix string) string {
	return c.endpoint + filesPath + prefix + url.PathEscape(key) + suffix
}

// parseServerError turns an error response into an *APIError.
func parseServerError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}

	var se serverError
	if err := json.Unmarshal(body, &se); err == nil && se.Error != "" {
		apiErr.Code = se.Error
		apiErr.Message = se.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	if mimeType := mime.TypeByExtension(filepath.Ext(path)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
