package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/filegate"
	"github.com/sagarc03/filegate/config"
)

// captureLogs routes the default logger into a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &buf
}

type failingEnsurer struct{ err error }

func (f failingEnsurer) EnsureBucket(context.Context) error { return f.err }

func TestPrepareBucket(t *testing.T) {
	t.Run("creates bucket and logs its name", func(t *testing.T) {
		logs := captureLogs(t)
		dir := t.TempDir()
		sc := config.StoreConfig{Type: "filesystem", Path: dir, Bucket: "uploads"}

		store, closeStore, err := openStore(sc)
		require.NoError(t, err)
		t.Cleanup(closeStore)

		gw, err := filegate.NewGateway(store, filegate.GatewayConfig{})
		require.NoError(t, err)

		require.NoError(t, prepareBucket(context.Background(), gw, sc))

		info, err := os.Stat(filepath.Join(dir, "uploads"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		var entry map[string]any
		require.NoError(t, json.Unmarshal(logs.Bytes(), &entry), logs.String())
		assert.Equal(t, "object store ready", entry["msg"])
		assert.Equal(t, "uploads", entry["bucket"])
		assert.Equal(t, "filesystem", entry["type"])
	})

	t.Run("failure names the bucket", func(t *testing.T) {
		logs := captureLogs(t)
		sc := config.StoreConfig{Type: "s3", Bucket: "files"}

		err := prepareBucket(context.Background(), failingEnsurer{err: filegate.ErrStoreUnavailable}, sc)
		require.Error(t, err)
		assert.True(t, errors.Is(err, filegate.ErrStoreUnavailable))
		assert.Contains(t, err.Error(), `"files"`)
		assert.Empty(t, logs.String())
	})
}
