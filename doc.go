// Package filegate provides a file storage gateway in front of an
// S3-compatible object store.
//
// Filegate accepts uploads, serves downloads, lists objects and deletes them,
// delegating durable storage to the object store. It keeps no cache or index
// of its own: every call is a pass-through to the store, which stays the only
// source of truth.
//
// # Key Components
//
//   - Gateway: upload/download/list/stat/delete with conflict detection,
//     size limits and streaming semantics
//   - ObjectStore: bucket-scoped store interface (see the s3store and
//     filesystem packages)
//   - ExclusiveWriter: optional atomic create-if-absent write
//   - StoredObject: object metadata (key, size, content type, last modified)
//
// # Errors
//
// Gateway methods return wrapped sentinel errors; test them with errors.Is:
//
//   - ErrNotFound: no object at the key
//   - ErrAlreadyExists: upload to an existing key
//   - ErrSizeLimitExceeded: upload larger than the configured maximum
//   - ErrInvalidInput: malformed key (empty, traversal, separators, ...)
//   - ErrStoreUnavailable: store unreachable or credentials rejected
//
// # Example Usage
//
//	store, err := s3store.New(s3store.Config{Endpoint: "localhost:9000", Bucket: "files"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gw, err := filegate.NewGateway(store, filegate.GatewayConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := gw.EnsureBucket(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	obj, err := gw.Upload(ctx, filegate.UploadRequest{Key: "notes.txt", Size: 11}, reader)
//
//	rc, obj, err := gw.Download(ctx, "notes.txt")
//	defer rc.Close()
//
// See the http package for the REST API.
package filegate
