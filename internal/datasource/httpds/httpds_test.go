package httpds

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
)

func fastClient(retries int) *Client {
	return NewClient(Config{
		MaxRetries:     retries,
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true})
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.Equal(t, 0, c.maxRetries)
	assert.Equal(t, 200*time.Millisecond, c.initialBackoff)
	assert.Equal(t, 5*time.Second, c.maxBackoff)

	tr, ok := c.httpClient.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestGetRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "flatfile", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "a,b\n1,2\n")
	}))
	defer srv.Close()

	c := NewClient(Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		BaseHeaders:    http.Header{"User-Agent": []string{"flatfile"}},
	})
	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestGetStopsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := fastClient(2).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retryable status 429")
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestSourceOpen(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/people.csv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "id,name\n1,ada\n")
	})
	mux.HandleFunc("/forbidden.csv", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := fastClient(0)
	ctx := context.Background()

	rc, err := c.Source(srv.URL + "/people.csv").Open(ctx)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "id,name\n1,ada\n", string(body))

	_, err = c.Source(srv.URL + "/missing.csv").Open(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSourceNotFound)

	_, err = c.Source(srv.URL + "/forbidden.csv").Open(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrSourceNotFound)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Source(srv.URL + "/people.csv").Open(canceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 500 * time.Millisecond},
		{70, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDuration(100*time.Millisecond, tt.attempt, 500*time.Millisecond), "attempt %d", tt.attempt)
	}
}

func TestNameFromURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "people.csv", NameFromURL("https://example.com/exports/people.csv?sig=abc"))
	assert.Equal(t, "report_2024_fmt_csv.csv", NameFromURL("https://example.com/download?report=2024&fmt=csv"))

	h := NameFromURL("https://example.com/")
	assert.Len(t, h, 36)
	assert.Equal(t, h, NameFromURL("https://example.com/"), "hash names are stable")
	assert.True(t, IsURL("https://example.com/a.csv"))
	assert.False(t, IsURL("/data/a.csv"))
}
