package di

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/PhotoViewer/internal/adapter/connectivity"
	"github.com/GoArmGo/PhotoViewer/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadMapping_PresetAndFile(t *testing.T) {
	cfg := &config.Config{}
	cfg.Catalog.Provider = "pixabay"

	m, err := loadMapping(cfg)
	require.NoError(t, err)
	assert.Equal(t, "pixabay", m.Name)

	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: own\nbase: picsum\nendpoint: http://own.test/list\n"), 0o600))
	cfg.Catalog.MappingFile = path

	m, err = loadMapping(cfg)
	require.NoError(t, err)
	assert.Equal(t, "own", m.Name)
	assert.Equal(t, "download_url", m.FullImage)
	assert.Equal(t, "http://own.test/list", m.Endpoint)
}

func TestNewProbe(t *testing.T) {
	cfg := &config.Config{}
	cfg.Probe.Timeout = time.Second

	probe, addr, err := newProbe(cfg, "https://picsum.photos/v2/list")
	require.NoError(t, err)
	assert.Equal(t, "picsum.photos:443", addr)
	assert.IsType(t, &connectivity.DialProbe{}, probe)

	cfg.Probe.Address = "10.0.0.1:8443"
	_, addr, err = newProbe(cfg, "https://picsum.photos/v2/list")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8443", addr)

	cfg.Probe.Disabled = true
	probe, addr, err = newProbe(cfg, "ftp://nowhere")
	require.NoError(t, err)
	assert.Empty(t, addr)
	assert.True(t, probe.IsReachable())

	cfg.Probe.Disabled = false
	cfg.Probe.Address = ""
	_, _, err = newProbe(cfg, "ftp://nowhere")
	assert.Error(t, err)
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "nested", "catalog.db")

	store, closer, err := openStore(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()

	assert.True(t, store.IsEmpty(context.Background()))
	assert.FileExists(t, cfg.Store.SQLitePath)
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Backend = "etcd"

	_, _, err := openStore(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}
