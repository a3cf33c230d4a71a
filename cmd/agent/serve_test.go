package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agui-stream/internal/config"
	"agui-stream/internal/logging"
	"agui-stream/internal/provider"
)

func TestNewSource(t *testing.T) {
	ctx := context.Background()

	src, err := newSource(ctx, &config.Config{Provider: config.ProviderEcho}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, provider.Echo{}, src)

	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - text: hi\n"), 0o600))
	src, err = newSource(ctx, &config.Config{Provider: config.ProviderScript, ScriptPath: path}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &provider.Script{}, src)

	_, err = newSource(ctx, &config.Config{Provider: config.ProviderScript, ScriptPath: filepath.Join(t.TempDir(), "missing.yaml")}, logging.Discard())
	require.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &config.Config{Port: "0", Provider: config.ProviderEcho, CORSOrigin: "*", StateTTL: time.Minute}

	errc := make(chan error, 1)
	go func() { errc <- serve(ctx, cfg, logging.Discard()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("serve did not return")
	}
}
