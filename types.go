package filegate

import (
	"time"
)

// StoredObject is the metadata of a single object held by the object store.
type StoredObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	LastModified time.Time `json:"lastModified"`
	ETag         string    `json:"etag,omitempty"`
}

// UploadRequest describes an object about to be written.
// Size is -1 when the length of the stream is not known up front.
type UploadRequest struct {
	Key         string
	Size        int64
	ContentType string
}

// DeleteResult is the confirmation returned after a successful delete.
type DeleteResult struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

const (
	// DefaultMaxUploadSize is 100 MiB.
	DefaultMaxUploadSize int64 = 100 << 20

	// DefaultOperationTimeout bounds every non-streaming store call.
	DefaultOperationTimeout = 30 * time.Second

	// MaxKeyLength matches the S3 object key limit.
	MaxKeyLength = 1024

	// DefaultContentType is used when nothing better can be inferred.
	DefaultContentType = "application/octet-stream"
)

// Operation names reported to an OperationObserver.
const (
	OpEnsureBucket = "ensure_bucket"
	OpUpload       = "upload"
	OpDownload     = "download"
	OpList         = "list"
	OpStat         = "stat"
	OpDelete       = "delete"
	OpPing         = "ping"
)
