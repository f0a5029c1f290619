package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedUploads(dir string, max int64) *Uploads {
	u := NewUploads(dir, max)
	u.now = func() time.Time { return time.Date(2024, 5, 1, 12, 34, 56, 123456000, time.UTC) }
	u.newID = func() string { return "7d4e2f0c-0000-4000-8000-000000000001" }
	return u
}

func TestSecureFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "etc_passwd"},
		{`C:\Users\me\report 2024.csv`, "C_Users_me_report_2024.csv"},
		{"i contain cool ümläuts.txt", "i_contain_cool_umlauts.txt"},
		{"caf\u00e9.csv", "cafe.csv"},
		{"...", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SecureFilename(tt.in), "SecureFilename(%q)", tt.in)
	}
}

func TestUploadsNewPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := fixedUploads(dir, 0).NewPath("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "7d4e2f0c-0000-4000-8000-000000000001-2024-05-01-123456.123456.csv"), p)
	assert.True(t, filepath.IsAbs(p))
}

func TestUploadsSave(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "uploads")
	u := NewUploads(dir, 0)
	p, err := u.Save(context.Background(), strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(p))
	assert.True(t, strings.HasSuffix(p, ".csv"))

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))
}

func TestUploadsSaveLimit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := NewUploads(dir, 4).Save(context.Background(), strings.NewReader("12345"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "oversized upload must be removed")

	_, err = NewUploads(dir, 5).Save(context.Background(), strings.NewReader("12345"))
	assert.NoError(t, err)
}

func TestUploadsSaveCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewUploads(t.TempDir(), 0).Save(ctx, strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
