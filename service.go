package filegate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ObjectStore defines the bucket-scoped operations the gateway needs from an
// S3-compatible object store. An ObjectStore is bound to a single bucket at
// construction time.
//
// All methods accept a context for cancellation and timeout control.
// Implementations must be safe for concurrent use and must translate backend
// errors into the package sentinels:
//   - ErrNotFound when the key does not exist
//   - ErrStoreUnavailable on connectivity or credential failures
type ObjectStore interface {
	// BucketExists reports whether the configured bucket exists.
	BucketExists(ctx context.Context) (bool, error)

	// MakeBucket creates the configured bucket.
	MakeBucket(ctx context.Context) error

	// HeadObject returns the metadata of the object at key.
	//
	// Returns:
	//   - StoredObject: metadata as reported by the store
	//   - error: ErrNotFound if key doesn't exist, or other store errors
	HeadObject(ctx context.Context, key string) (StoredObject, error)

	// PutObject writes content under key, replacing any existing object.
	//
	// Parameters:
	//   - size: exact number of bytes in content, or -1 if unknown
	//   - contentType: media type recorded with the object
	//
	// Implementations must stream content and must not leave a partial
	// object behind when content returns an error or ctx is cancelled.
	PutObject(ctx context.Context, key string, content io.Reader, size int64, contentType string) error

	// GetObject opens a stream over the object at key.
	//
	// Returns:
	//   - io.ReadCloser: object content; the caller must close it
	//   - StoredObject: metadata of the object being streamed
	//   - error: ErrNotFound if key doesn't exist, or other store errors
	//
	// Implementations must release every handle they acquired when they
	// return an error.
	GetObject(ctx context.Context, key string) (io.ReadCloser, StoredObject, error)

	// ListObjects returns every object in the bucket in store order.
	ListObjects(ctx context.Context) ([]StoredObject, error)

	// DeleteObject removes the object at key.
	DeleteObject(ctx context.Context, key string) error
}

// ExclusiveWriter is implemented by stores that offer an atomic
// create-if-absent write. The gateway prefers it over the stat-then-put
// sequence, which cannot stop two concurrent uploads of the same key.
type ExclusiveWriter interface {
	// PutObjectIfAbsent behaves like PutObject but fails with
	// ErrAlreadyExists instead of replacing an existing object.
	PutObjectIfAbsent(ctx context.Context, key string, content io.Reader, size int64, contentType string) error
}

// OperationObserver receives one call per completed gateway operation.
type OperationObserver interface {
	Observe(op string, bytes int64, err error, dur time.Duration)
}

// GatewayConfig holds configuration options for Gateway.
type GatewayConfig struct {
	MaxUploadSize     int64         // Maximum object size in bytes (default: 100 MiB)
	AllowedExtensions []string      // Permitted file extensions; empty allows all
	OperationTimeout  time.Duration // Timeout for non-streaming store calls (default: 30s)
	Observer          OperationObserver
}

// Gateway translates file operations into object store calls. It holds no
// cached state: the store is the only source of truth, so a Gateway is safe
// for concurrent use as long as its ObjectStore is.
type Gateway struct {
	store             ObjectStore
	maxUploadSize     int64
	allowedExtensions []string
	opTimeout         time.Duration
	observer          OperationObserver
}

var tracer = otel.Tracer("github.com/sagarc03/filegate")

func NewGateway(store ObjectStore, cfg GatewayConfig) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("new gateway: store is required")
	}
	if cfg.MaxUploadSize < 0 {
		return nil, fmt.Errorf("new gateway: invalid max upload size: %d", cfg.MaxUploadSize)
	}

	maxUploadSize := cfg.MaxUploadSize
	if maxUploadSize == 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	opTimeout := cfg.OperationTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultOperationTimeout
	}

	return &Gateway{
		store:             store,
		maxUploadSize:     maxUploadSize,
		allowedExtensions: cfg.AllowedExtensions,
		opTimeout:         opTimeout,
		observer:          cfg.Observer,
	}, nil
}

// MaxUploadSize returns the effective upload limit in bytes.
func (g *Gateway) MaxUploadSize() int64 {
	return g.maxUploadSize
}

// EnsureBucket creates the configured bucket if it does not exist yet.
// It is idempotent and meant to be called once at startup; any error means
// the gateway cannot serve requests and is reported as ErrStoreUnavailable.
func (g *Gateway) EnsureBucket(ctx context.Context) (err error) {
	ctx, done := g.begin(ctx, OpEnsureBucket, "")
	defer func() { done(0, err) }()

	tctx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	exists, err := g.store.BucketExists(tctx)
	if err != nil {
		return fmt.Errorf("ensure bucket: %w", unavailable(err))
	}
	if exists {
		return nil
	}

	if err = g.store.MakeBucket(tctx); err != nil {
		return fmt.Errorf("ensure bucket: create: %w", unavailable(err))
	}
	return nil
}

// Ping checks that the store is reachable and the bucket exists.
func (g *Gateway) Ping(ctx context.Context) (err error) {
	ctx, done := g.begin(ctx, OpPing, "")
	defer func() { done(0, err) }()

	tctx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	exists, err := g.store.BucketExists(tctx)
	if err != nil {
		return fmt.Errorf("ping: %w", unavailable(err))
	}
	if !exists {
		return fmt.Errorf("ping: %w: bucket does not exist", ErrStoreUnavailable)
	}
	return nil
}

// Upload writes a new object and returns its metadata as reported by the store.
//
// The method performs the following steps:
//  1. Validates the key (and its extension when an allow list is configured)
//  2. Rejects a declared size above the configured maximum
//  3. Checks for an existing object, atomically when the store implements
//     ExclusiveWriter, otherwise with a stat immediately before the write
//  4. Streams content to the store, aborting once more than the maximum
//     number of bytes has been read
//  5. Reads the object metadata back from the store
//
// Error types returned:
//   - ErrInvalidInput: key fails IsValidKey or has a disallowed extension
//   - ErrSizeLimitExceeded: declared or observed size is over the limit
//   - ErrAlreadyExists: an object already exists at the key
//   - ErrStoreUnavailable and other wrapped store errors
//
// Concurrency safety: without ExclusiveWriter, two uploads of the same key
// may both pass the existence check and the last write wins.
func (g *Gateway) Upload(ctx context.Context, req UploadRequest, content io.Reader) (obj StoredObject, err error) {
	ctx, done := g.begin(ctx, OpUpload, req.Key)
	defer func() { done(obj.Size, err) }()

	if err = ctx.Err(); err != nil {
		return StoredObject{}, fmt.Errorf("upload: %w", err)
	}

	if !IsValidKey(req.Key) {
		return StoredObject{}, fmt.Errorf("upload %q: %w", req.Key, ErrInvalidInput)
	}

	if !HasAllowedExtension(req.Key, g.allowedExtensions) {
		return StoredObject{}, fmt.Errorf("upload %q: %w: file extension not allowed", req.Key, ErrInvalidInput)
	}

	if req.Size > g.maxUploadSize {
		return StoredObject{}, fmt.Errorf("upload %q: %w: %d bytes exceeds limit of %d", req.Key, ErrSizeLimitExceeded, req.Size, g.maxUploadSize)
	}

	size := req.Size
	if size < 0 {
		size = -1
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = ResolveContentType(req.Key, "", nil)
	}

	lr := &limitedReader{r: content, n: g.maxUploadSize, declared: size}

	if ew, ok := g.store.(ExclusiveWriter); ok {
		err = ew.PutObjectIfAbsent(ctx, req.Key, lr, size, contentType)
	} else {
		_, headErr := g.stat(ctx, req.Key)
		switch {
		case headErr == nil:
			return StoredObject{}, fmt.Errorf("upload %q: %w", req.Key, ErrAlreadyExists)
		case !errors.Is(headErr, ErrNotFound):
			return StoredObject{}, fmt.Errorf("upload %q: existence check: %w", req.Key, headErr)
		}
		err = g.store.PutObject(ctx, req.Key, lr, size, contentType)
	}
	if err != nil {
		switch {
		case lr.exceeded:
			return StoredObject{}, fmt.Errorf("upload %q: %w: more than %d bytes", req.Key, ErrSizeLimitExceeded, g.maxUploadSize)
		case lr.mismatch:
			return StoredObject{}, fmt.Errorf("upload %q: %w", req.Key, errSizeMismatch)
		}
		return StoredObject{}, fmt.Errorf("upload %q: write failed: %w", req.Key, err)
	}

	// A store given a declared size may stop reading there and succeed.
	if lr.trailing() {
		g.discard(ctx, req.Key)
		return StoredObject{}, fmt.Errorf("upload %q: %w", req.Key, errSizeMismatch)
	}

	obj, err = g.stat(ctx, req.Key)
	if err != nil {
		return StoredObject{}, fmt.Errorf("upload %q: read back: %w", req.Key, err)
	}

	return obj, nil
}

// Download opens a stream over the object at key. The caller must close the
// returned stream; closing it releases the underlying store handle and ends
// the operation's span and metrics. The stream also has a
// CloseWithError(error) error method for callers that give up early.
func (g *Gateway) Download(ctx context.Context, key string) (io.ReadCloser, StoredObject, error) {
	ctx, done := g.begin(ctx, OpDownload, key)

	if !IsValidKey(key) {
		err := fmt.Errorf("download %q: %w", key, ErrInvalidInput)
		done(0, err)
		return nil, StoredObject{}, err
	}

	rc, obj, err := g.store.GetObject(ctx, key)
	if err != nil {
		err = fmt.Errorf("download %q: %w", key, err)
		done(0, err)
		return nil, StoredObject{}, err
	}

	return &trackedStream{rc: rc, done: done}, obj, nil
}

// Stat returns the metadata of the object at key.
func (g *Gateway) Stat(ctx context.Context, key string) (obj StoredObject, err error) {
	ctx, done := g.begin(ctx, OpStat, key)
	defer func() { done(0, err) }()

	if !IsValidKey(key) {
		return StoredObject{}, fmt.Errorf("stat %q: %w", key, ErrInvalidInput)
	}

	obj, err = g.stat(ctx, key)
	if err != nil {
		return StoredObject{}, fmt.Errorf("stat %q: %w", key, err)
	}
	return obj, nil
}

// List returns every object in the bucket in the order the store reports
// them. An empty bucket yields an empty, non-nil slice.
func (g *Gateway) List(ctx context.Context) (objs []StoredObject, err error) {
	ctx, done := g.begin(ctx, OpList, "")
	defer func() { done(0, err) }()

	tctx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	objs, err = g.store.ListObjects(tctx)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	if objs == nil {
		objs = []StoredObject{}
	}
	return objs, nil
}

// Delete removes the object at key. It fails with ErrNotFound when there is
// nothing to delete, even on stores whose native delete is idempotent.
func (g *Gateway) Delete(ctx context.Context, key string) (err error) {
	ctx, done := g.begin(ctx, OpDelete, key)
	defer func() { done(0, err) }()

	if !IsValidKey(key) {
		return fmt.Errorf("delete %q: %w", key, ErrInvalidInput)
	}

	if _, err = g.stat(ctx, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	tctx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	if err = g.store.DeleteObject(tctx, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// discard removes an object the gateway just wrote but refuses to keep.
func (g *Gateway) discard(ctx context.Context, key string) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opTimeout)
	defer cancel()
	if err := g.store.DeleteObject(tctx, key); err != nil {
		slog.Warn("failed to remove rejected upload", "key", key, "err", err)
	}
}

func (g *Gateway) stat(ctx context.Context, key string) (StoredObject, error) {
	tctx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()
	return g.store.HeadObject(tctx, key)
}

// begin starts a span for op and returns a function that ends it and reports
// the outcome to the observer. The returned function must be called exactly once.
func (g *Gateway) begin(ctx context.Context, op, key string) (context.Context, func(bytes int64, err error)) {
	start := time.Now()

	var attrs []attribute.KeyValue
	if key != "" {
		attrs = append(attrs, attribute.String("filegate.key", key))
	}
	ctx, span := tracer.Start(ctx, "gateway."+op, trace.WithAttributes(attrs...))

	return ctx, func(bytes int64, err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int64("filegate.bytes", bytes))
		span.End()

		if g.observer != nil {
			g.observer.Observe(op, bytes, err, time.Since(start))
		}
	}
}

// unavailable tags err as ErrStoreUnavailable unless it already is.
func unavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

var errSizeMismatch = fmt.Errorf("%w: body length does not match declared size", ErrInvalidInput)

// limitedReader fails with ErrSizeLimitExceeded once more than n bytes have
// been read from r. When declared is not -1 it also fails with
// errSizeMismatch as soon as the stream proves longer or shorter than that.
type limitedReader struct {
	r        io.Reader
	n        int64
	declared int64
	read     int64
	exceeded bool
	mismatch bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	switch {
	case l.exceeded:
		return 0, ErrSizeLimitExceeded
	case l.mismatch:
		return 0, errSizeMismatch
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}

	n, err := l.r.Read(p)
	l.n -= int64(n)
	l.read += int64(n)
	if l.n < 0 {
		l.exceeded = true
		return n, ErrSizeLimitExceeded
	}
	if l.declared >= 0 && (l.read > l.declared || (errors.Is(err, io.EOF) && l.read != l.declared)) {
		l.mismatch = true
		return n, errSizeMismatch
	}
	return n, err
}

// trailing consumes whatever the store left unread and reports whether the
// stream broke its declared size or the upload limit.
func (l *limitedReader) trailing() bool {
	if l.declared < 0 {
		return false
	}
	_, _ = io.Copy(io.Discard, l)
	return l.mismatch || l.exceeded
}

// trackedStream counts bytes served and finishes the download operation on Close.
type trackedStream struct {
	rc       io.ReadCloser
	done     func(bytes int64, err error)
	n        int64
	readErr  error
	closeErr error
	once     sync.Once
}

func (s *trackedStream) Read(p []byte) (int, error) {
	n, err := s.rc.Read(p)
	s.n += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		s.readErr = err
	}
	return n, err
}

func (s *trackedStream) Close() error {
	return s.finish(nil)
}

// CloseWithError closes the stream and records the download as failed with
// cause, for consumers that stopped early because their own side broke.
// A read error seen earlier takes precedence.
func (s *trackedStream) CloseWithError(cause error) error {
	return s.finish(cause)
}

func (s *trackedStream) finish(cause error) error {
	s.once.Do(func() {
		s.closeErr = s.rc.Close()
		opErr := s.readErr
		if opErr == nil {
			opErr = cause
		}
		if opErr == nil {
			opErr = s.closeErr
		}
		s.done(s.n, opErr)
	})
	return s.closeErr
}
