package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sagarc03/filegate"
	"github.com/sagarc03/filegate/config"
	"github.com/sagarc03/filegate/filesystem"
	filegatehttp "github.com/sagarc03/filegate/http"
	"github.com/sagarc03/filegate/metrics"
	"github.com/sagarc03/filegate/s3store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the filegate HTTP server. The configured bucket is created on
startup if it does not exist; the server refuses to start when the object
store cannot be reached.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (default: 0.0.0.0, env: FILEGATE_SERVER_HOST)")
	serveCmd.Flags().Int("port", 0, "HTTP server port (default: 8080, env: FILEGATE_SERVER_PORT)")
	serveCmd.Flags().Int64("max-upload-size", 0, "maximum upload size in bytes (env: FILEGATE_UPLOAD_MAX_SIZE)")
	serveCmd.Flags().Bool("metrics", true, "expose Prometheus metrics on /metrics (env: FILEGATE_METRICS_ENABLED)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	shutdownTracing, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracing shutdown error", "err", err)
		}
	}()

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	var m *metrics.Metrics
	gwCfg := filegate.GatewayConfig{
		MaxUploadSize:     cfg.Upload.MaxSize,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		OperationTimeout:  cfg.Store.Timeout(),
	}
	if cfg.Metrics.Enabled {
		m = metrics.New()
		gwCfg.Observer = m.Gateway()
	}

	gw, err := filegate.NewGateway(store, gwCfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	if err = prepareBucket(ctx, gw, cfg.Store); err != nil {
		return err
	}

	handlerConfig := filegatehttp.HandlerConfig{
		MaxUploadSize: gw.MaxUploadSize(),
		CORS:          cfg.CORS,
		Metrics:       m,
		Version:       version,
	}
	handler := filegatehttp.NewHandler(&handlerConfig, gw)

	addr := cfg.Server.Addr()
	server := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(handler.Router(), "filegate"),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server",
		"addr", addr,
		"max_upload_size", gw.MaxUploadSize(),
		"metrics", cfg.Metrics.Enabled,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// openStore builds the configured backend. The returned close function
// releases any resources held by the store.
type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// prepareBucket makes sure the configured bucket exists and logs which one
// the server is bound to.
func prepareBucket(ctx context.Context, gw bucketEnsurer, sc config.StoreConfig) error {
	if err := gw.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %q: %w", sc.Bucket, err)
	}
	slog.Info("object store ready", "type", sc.Type, "bucket", sc.Bucket)
	return nil
}

func openStore(cfg config.StoreConfig) (filegate.ObjectStore, func(), error) {
	switch cfg.Type {
	case "filesystem":
		storagePath := filepath.Clean(cfg.Path)
		if err := os.MkdirAll(storagePath, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create storage directory: %w", err)
		}

		root, err := os.OpenRoot(storagePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage root: %w", err)
		}

		store, err := filesystem.New(root, cfg.Bucket)
		if err != nil {
			_ = root.Close()
			return nil, nil, err
		}
		return store, func() { _ = root.Close() }, nil

	case "s3":
		store, err := s3store.New(s3store.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
			Region:    cfg.Region,
			PartSize:  cfg.PartSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
