package clientcli

import (
	"time"
)

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPaths []string
	// Name overrides the stored file name. Only valid with a single path;
	// defaults to the base name of the local file.
	Name string
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath string `json:"local_path"`
	ObjectInfo
	Err error `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	Key       string
	LocalPath string // empty = use the key as file name, "-" = stdout
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	Key         string `json:"key"`
	LocalPath   string `json:"local_path"`
	ETag        string `json:"etag"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	Keys []string
}

// DeleteResult represents the result of deleting a single file.
type DeleteResult struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"` // nil on success
}

// ListResult holds every object in the bucket.
type ListResult struct {
	Items []ObjectInfo `json:"items"`
}

// TotalSize calculates the total size of all items in bytes.
func (r *ListResult) TotalSize() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.Size
	}
	return total
}

// ObjectInfo represents metadata for a single object. The JSON field names
// match the server's responses.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	LastModified time.Time `json:"lastModified"`
	ETag         string    `json:"etag,omitempty"`
}

// HealthResult reports the server's view of its object store.
type HealthResult struct {
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"` // "ok" or "degraded"
}

// Healthy reports whether the server could reach its object store.
func (h *HealthResult) Healthy() bool {
	return h.Status == "ok"
}

// serverError mirrors the server's JSON error body.
type serverError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
