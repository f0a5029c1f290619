package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRunServesUntilCanceled(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "web.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
upload:
  dir: `+filepath.Join(dir, "uploads")+`
store:
  kind: bolt
  path: `+filepath.Join(dir, "ff.db")+`
log:
  level: error
`), 0o644))

	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- run(ctx, cfg, addr) }()

	var res *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + addr + "/flatfile")
		if err != nil {
			return false
		}
		res = r
		return true
	}, 5*time.Second, 50*time.Millisecond)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunBadConfig(t *testing.T) {
	err := run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}
