// Package s3store provides an S3-compatible object store backend for filegate
// built on the MinIO Go client. It works against MinIO, AWS S3 and any other
// service speaking the S3 API.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sagarc03/filegate"
)

var _ filegate.ExclusiveWriter = (*Store)(nil)

// DefaultPartSize bounds the memory used per multipart chunk when uploading
// a stream of unknown length.
const DefaultPartSize uint64 = 16 << 20

// Config holds connection parameters for an S3-compatible endpoint.
type Config struct {
	Endpoint  string // host:port, or a URL whose scheme selects TLS
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PartSize  uint64
}

// Store implements filegate.ObjectStore on top of a single bucket.
type Store struct {
	client   *minio.Client
	bucket   string
	region   string
	partSize uint64
}

// New creates a Store from cfg. It does not contact the endpoint; use
// filegate.Gateway.EnsureBucket or Ping to check connectivity.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new s3 store: bucket is required")
	}

	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("new s3 store: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("new s3 store: %w", err)
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}

	return &Store{
		client:   client,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		partSize: partSize,
	}, nil
}

// parseEndpoint accepts either host:port or a URL. A URL scheme overrides useSSL.
func parseEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if endpoint == "" {
		return "", false, errors.New("endpoint is required")
	}

	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), useSSL, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	switch u.Scheme {
	case "http":
		useSSL = false
	case "https":
		useSSL = true
	default:
		return "", false, fmt.Errorf("invalid endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}

	if u.Host == "" || (u.Path != "" && u.Path != "/") {
		return "", false, fmt.Errorf("invalid endpoint %q: must be a bare host", endpoint)
	}

	return u.Host, useSSL, nil
}

// BucketExists reports whether the configured bucket exists.
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, translate(err)
	}
	return ok, nil
}

// MakeBucket creates the configured bucket in the configured region.
func (s *Store) MakeBucket(ctx context.Context) error {
	err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil {
		// Lost a creation race with another gateway instance.
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return translate(err)
	}
	return nil
}

// HeadObject returns the metadata of the object at key.
func (s *Store) HeadObject(ctx context.Context, key string) (filegate.StoredObject, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return filegate.StoredObject{}, translate(err)
	}
	return toStoredObject(info), nil
}

// PutObject streams content into the bucket. A size of -1 switches the
// client to multipart upload with parts of PartSize bytes; if content fails
// midway the client aborts the multipart upload, so no object is created.
func (s *Store) PutObject(ctx context.Context, key string, content io.Reader, size int64, contentType string) error {
	return s.put(ctx, key, content, size, s.putOptions(contentType))
}

// PutObjectIfAbsent writes content under key only if no object exists there.
// The write carries If-None-Match: *, so of two concurrent uploads of the same
// key the server accepts one and rejects the other with 412, which is
// reported as filegate.ErrAlreadyExists. A stat runs first so the common
// conflict fails before any of the body is sent.
func (s *Store) PutObjectIfAbsent(ctx context.Context, key string, content io.Reader, size int64, contentType string) error {
	_, err := s.HeadObject(ctx, key)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", filegate.ErrAlreadyExists, key)
	case !errors.Is(err, filegate.ErrNotFound):
		return err
	}

	opts := s.putOptions(contentType)
	opts.SetMatchETagExcept("*")
	return s.put(ctx, key, content, size, opts)
}

func (s *Store) putOptions(contentType string) minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    s.partSize,
	}
}

func (s *Store) put(ctx context.Context, key string, content io.Reader, size int64, opts minio.PutObjectOptions) error {
	if _, err := s.client.PutObject(ctx, s.bucket, key, content, size, opts); err != nil {
		return translate(err)
	}
	return nil
}

// GetObject opens the object at key. The request is issued eagerly so that a
// missing key surfaces as filegate.ErrNotFound here rather than on first Read.
func (s *Store) GetObject(ctx context.Context, key string) (io.ReadCloser, filegate.StoredObject, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, filegate.StoredObject{}, translate(err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, filegate.StoredObject{}, translate(err)
	}

	return obj, toStoredObject(info), nil
}

// ListObjects walks the whole bucket. Content types come from the listing
// metadata when the server provides it (MinIO does) and from a stat call
// otherwise.
func (s *Store) ListObjects(ctx context.Context) ([]filegate.StoredObject, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := []filegate.StoredObject{}
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Recursive:    true,
		WithMetadata: true,
	}) {
		if info.Err != nil {
			return nil, translate(info.Err)
		}

		obj := toStoredObject(info)
		if obj.ContentType == "" {
			stat, err := s.client.StatObject(ctx, s.bucket, info.Key, minio.StatObjectOptions{})
			if err != nil {
				err = translate(err)
				if errors.Is(err, filegate.ErrNotFound) {
					// Deleted while listing.
					continue
				}
				return nil, err
			}
			obj.ContentType = stat.ContentType
		}
		if obj.ContentType == "" {
			obj.ContentType = filegate.DefaultContentType
		}

		objects = append(objects, obj)
	}

	return objects, nil
}

// DeleteObject removes the object at key. S3 deletes are idempotent, so a
// missing key is not reported here.
func (s *Store) DeleteObject(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return translate(err)
	}
	return nil
}

func toStoredObject(info minio.ObjectInfo) filegate.StoredObject {
	contentType := info.ContentType
	if contentType == "" {
		for _, k := range []string{"content-type", "Content-Type"} {
			if v, ok := info.UserMetadata[k]; ok && v != "" {
				contentType = v
				break
			}
		}
	}

	return filegate.StoredObject{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  contentType,
		LastModified: info.LastModified.UTC(),
		ETag:         strings.Trim(info.ETag, `"`),
	}
}

// translate maps MinIO client errors onto filegate sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", filegate.ErrStoreUnavailable, err)
	}

	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: %s", filegate.ErrAlreadyExists, resp.Key)
	}
	switch resp.Code {
	case "PreconditionFailed":
		return fmt.Errorf("%w: %s", filegate.ErrAlreadyExists, resp.Key)
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %s", filegate.ErrNotFound, resp.Key)
	case "NoSuchBucket",
		"AccessDenied",
		"InvalidAccessKeyId",
		"SignatureDoesNotMatch",
		"ExpiredToken",
		"InvalidToken",
		"ServiceUnavailable",
		"SlowDown",
		"XMinioServerNotInitialized":
		return fmt.Errorf("%w: %s: %s", filegate.ErrStoreUnavailable, resp.Code, resp.Message)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", filegate.ErrStoreUnavailable, err)
	}

	return err
}
