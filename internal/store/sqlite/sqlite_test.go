package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkramsay/flat-file-manager/internal/descriptor"
)

func TestOpenRejectsBadTableName(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "x.db"), "x; DROP TABLE y")
	assert.Error(t, err)
}

func TestListKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := Open(ctx, filepath.Join(t.TempDir(), "x.db"), "")
	require.NoError(t, err)
	defer s.Close()

	var want []string
	for _, name := range []string{"c.csv", "a.csv", "b.csv"} {
		d := descriptor.New(name, "")
		require.NoError(t, s.Put(ctx, d))
		want = append(want, d.ID())
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	var got []string
	for _, d := range list {
		got = append(got, d.ID())
	}
	assert.Equal(t, want, got)
}
