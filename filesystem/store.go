// Package filesystem provides a local directory backend for filegate.
// It lays a bucket out as plain files, supports atomic and exclusive writes
// using temp files, and records SHA256-based etags and content types in
// per-object metadata files.
//
// Layout under the root, for bucket "files":
//
//	files/objects/<key>     object content
//	files/meta/<key>.json   content type and etag
//	files/tmp/              in-flight writes
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/sagarc03/filegate"
)

const (
	objectsDir = "objects"
	metaDir    = "meta"
	tmpDir     = "tmp"
)

// Store implements filegate.ObjectStore and filegate.ExclusiveWriter on a
// directory. Every path is resolved through an os.Root, so keys cannot escape
// the bucket directory.
type Store struct {
	root   *os.Root
	bucket string
}

type metadata struct {
	ContentType string `json:"contentType"`
	ETag        string `json:"etag"`
}

// New creates a Store for bucket inside root. The bucket directory is created
// by MakeBucket, not here.
func New(root *os.Root, bucket string) (*Store, error) {
	if root == nil {
		return nil, errors.New("new filesystem store: root is required")
	}
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return nil, fmt.Errorf("new filesystem store: invalid bucket name %q", bucket)
	}
	return &Store{root: root, bucket: bucket}, nil
}

func (s *Store) objectPath(key string) string { return path.Join(s.bucket, objectsDir, key) }
func (s *Store) metaPath(key string) string   { return path.Join(s.bucket, metaDir, key+".json") }
func (s *Store) tmpPath() string {
	return path.Join(s.bucket, tmpDir, fmt.Sprintf(".t%s", uuid.New().String()))
}

// BucketExists reports whether the bucket directory exists.
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	info, err := s.root.Stat(path.Join(s.bucket, objectsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", filegate.ErrStoreUnavailable, err)
	}
	return info.IsDir(), nil
}

// MakeBucket creates the bucket directories. It succeeds if they already exist.
func (s *Store) MakeBucket(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, dir := range []string{objectsDir, metaDir, tmpDir} {
		if err := s.root.MkdirAll(path.Join(s.bucket, dir), 0o755); err != nil {
			return fmt.Errorf("%w: make bucket: %w", filegate.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// HeadObject returns the metadata of the object at key.
func (s *Store) HeadObject(ctx context.Context, key string) (filegate.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return filegate.StoredObject{}, err
	}

	info, err := s.root.Stat(s.objectPath(key))
	if err != nil {
		return filegate.StoredObject{}, s.notFound(key, err)
	}
	if info.IsDir() {
		return filegate.StoredObject{}, fmt.Errorf("%w: %s", filegate.ErrNotFound, key)
	}

	return s.storedObject(key, info), nil
}

// GetObject opens the object at key for reading.
func (s *Store) GetObject(ctx context.Context, key string) (io.ReadCloser, filegate.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, filegate.StoredObject{}, err
	}

	f, err := s.root.Open(s.objectPath(key))
	if err != nil {
		return nil, filegate.StoredObject{}, s.notFound(key, err)
	}

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "key", key, "err", closeErr)
		}
		if err == nil {
			err = fmt.Errorf("%w: %s", filegate.ErrNotFound, key)
		}
		return nil, filegate.StoredObject{}, err
	}

	return f, s.storedObject(key, info), nil
}

// ListObjects returns every object in the bucket ordered by key.
func (s *Store) ListObjects(ctx context.Context) ([]filegate.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(s.root.FS(), path.Join(s.bucket, objectsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: bucket %q does not exist", filegate.ErrStoreUnavailable, s.bucket)
		}
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	objects := make([]filegate.StoredObject, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Deleted while listing.
				continue
			}
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		objects = append(objects, s.storedObject(entry.Name(), info))
	}

	return objects, nil
}

// PutObject atomically writes content under key, replacing any existing object.
func (s *Store) PutObject(ctx context.Context, key string, content io.Reader, size int64, contentType string) error {
	return s.write(ctx, key, content, size, contentType, func(tmp, dst string) error {
		return s.root.Rename(tmp, dst)
	})
}

// PutObjectIfAbsent writes content under key and fails with
// filegate.ErrAlreadyExists if an object is already there. The object is
// published with a hard link, which the operating system refuses when the
// destination exists.
func (s *Store) PutObjectIfAbsent(ctx context.Context, key string, content io.Reader, size int64, contentType string) error {
	return s.write(ctx, key, content, size, contentType, func(tmp, dst string) error {
		if err := s.root.Link(tmp, dst); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("%w: %s", filegate.ErrAlreadyExists, key)
			}
			return err
		}
		return nil
	})
}

// write streams content to a temp file, records its metadata and hands the
// temp file to publish. The temp file is always removed afterwards, which is
// a no-op after a rename and drops the extra link after a hard link.
func (s *Store) write(ctx context.Context, key string, content io.Reader, size int64, contentType string, publish func(tmp, dst string) error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	tmpFile := s.tmpPath()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		if errors.Is(createErr, fs.ErrNotExist) {
			return fmt.Errorf("%w: bucket %q does not exist", filegate.ErrStoreUnavailable, s.bucket)
		}
		return fmt.Errorf("could not open temp file: %w", createErr)
	}

	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if rmErr := s.root.Remove(tmpFile); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Warn("failed to remove tmp file", "err", rmErr)
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	written, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return fmt.Errorf("could not copy file contents: %w", err)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("could not copy file contents: wrote %d bytes, expected %d", written, size)
	}

	if err := t.Sync(); err != nil {
		return fmt.Errorf("could not sync written file: %w", err)
	}
	if err := t.Close(); err != nil {
		return fmt.Errorf("could not close written file: %w", err)
	}

	if err := publish(tmpFile, s.objectPath(key)); err != nil {
		return fmt.Errorf("failed to publish object: %w", err)
	}

	meta := metadata{ContentType: contentType, ETag: hex.EncodeToString(h.Sum(nil))}
	if err := s.writeMeta(key, meta); err != nil {
		// Content is in place; readers fall back to the extension type.
		slog.Warn("failed to write object metadata", "key", key, "err", err)
	}

	return nil
}

func (s *Store) writeMeta(key string, meta metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	tmpFile := s.tmpPath()
	if err := s.root.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}
	if err := s.root.Rename(tmpFile, s.metaPath(key)); err != nil {
		_ = s.root.Remove(tmpFile)
		return err
	}
	return nil
}

func (s *Store) readMeta(key string) metadata {
	var meta metadata

	data, err := s.root.ReadFile(s.metaPath(key))
	if err != nil {
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		slog.Warn("ignoring corrupt object metadata", "key", key, "err", err)
		return metadata{}
	}
	return meta
}

// DeleteObject removes the object at key and its metadata. It returns
// filegate.ErrNotFound if the key does not exist.
func (s *Store) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(s.objectPath(key)); err != nil {
		return s.notFound(key, err)
	}

	if err := s.root.Remove(s.metaPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove object metadata", "key", key, "err", err)
	}
	return nil
}

func (s *Store) storedObject(key string, info fs.FileInfo) filegate.StoredObject {
	meta := s.readMeta(key)

	contentType := meta.ContentType
	if contentType == "" {
		contentType = filegate.TypeByKey(key)
	}
	if contentType == "" {
		contentType = filegate.DefaultContentType
	}

	return filegate.StoredObject{
		Key:          key,
		Size:         info.Size(),
		ContentType:  contentType,
		LastModified: info.ModTime().UTC(),
		ETag:         meta.ETag,
	}
}

// notFound translates a missing file into ErrNotFound, or into
// ErrStoreUnavailable when the whole bucket is gone.
func (s *Store) notFound(key string, err error) error {
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("object %q: %w", key, err)
	}
	if _, statErr := s.root.Stat(path.Join(s.bucket, objectsDir)); statErr != nil {
		return fmt.Errorf("%w: bucket %q does not exist", filegate.ErrStoreUnavailable, s.bucket)
	}
	return fmt.Errorf("%w: %s", filegate.ErrNotFound, key)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
