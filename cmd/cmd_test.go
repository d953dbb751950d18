package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/trickle/internal/config"
	"github.com/tanq16/trickle/internal/perf"
	"github.com/tanq16/trickle/internal/storage"
)

func TestBuildDownloaderKinds(t *testing.T) {
	c := config.Default()
	store := storage.NewMemFS(0)
	for kind, name := range map[string]string{
		engineStream: "stream",
		"":           "stream",
		engineResume: "resume",
		engineDual:   "dual-core",
	} {
		d, release, err := buildDownloader(c, kind, store, perf.NewMonitor())
		require.NoError(t, err, kind)
		assert.Equal(t, name, d.Name())
		release()
	}
	_, _, err := buildDownloader(c, "parallel", store, perf.NewMonitor())
	assert.Error(t, err)
}

func TestFetchOneIntoStorage(t *testing.T) {
	payload := make([]byte, 70000)
	for i := range payload {
		payload[i] = byte(i)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	cfg = config.Default()
	cfg.Storage.Root = t.TempDir()
	store := storeFor(cfg)
	require.NoError(t, store.Mount())

	res := fetchOne(context.Background(), srv.URL+"/fw.bin", "fw.bin", engineStream, store, false)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(len(payload)), res.TotalBytes)

	data, err := os.ReadFile(filepath.Join(cfg.Storage.Root, "fw.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	res = fetchOne(context.Background(), srv.URL+"/fw.bin", "fw.bin", engineResume, store, false)
	assert.True(t, res.Skipped)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	require.NoError(t, rootCmd.ParseFlags([]string{"--storage-capacity", "4096", "--token", "abc"}))
	c, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), c.Storage.Capacity)
	assert.Equal(t, "abc", c.HTTP.Token)
	assert.Equal(t, 2, c.Engine.MaxRetries)
}
