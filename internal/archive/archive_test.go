package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalPutWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, err := NewLocal(dir)
	require.NoError(t, err)

	uri, err := a.Put(context.Background(), "hpi/2025/06/full.csv", []byte("Date,RegionName\n"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "hpi", "2025", "06", "full.csv"))
	require.NoError(t, err)
	require.Equal(t, "Date,RegionName\n", string(data))
}

func TestLocalPutRejectsTraversal(t *testing.T) {
	t.Parallel()

	a, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = a.Put(context.Background(), "../escape.csv", []byte("x"))
	require.Error(t, err)
}

func TestLocalCreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "raw")
	_, err := NewLocal(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestMemoryPutAndGet(t *testing.T) {
	t.Parallel()

	a := NewMemory()
	uri, err := a.Put(context.Background(), "hpi/full.csv", []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, "memory://hpi/full.csv", uri)

	data, ok := a.Get("hpi/full.csv")
	require.True(t, ok)
	require.Equal(t, "payload", string(data))
}

func TestNoOpPut(t *testing.T) {
	t.Parallel()

	var a NoOpProvider
	uri, err := a.Put(context.Background(), "k", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "noop://k", uri)
}
