package fileio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// requireDirectIO skips the test when the backing filesystem doesn't
// support O_DIRECT (common on tmpfs).
func requireDirectIO(t *testing.T, err error) {
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTSUP) {
		t.Skipf("filesystem does not support O_DIRECT: %v", err)
	}
}

func TestDefaultOpenerOpensAndDiscoversBlockSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")

	f, blockSize, err := DefaultOpener(path, 0)
	requireDirectIO(t, err)
	require.NoError(t, err)
	defer f.Close()

	require.Greater(t, blockSize, 0)
	require.True(t, blockSize&(blockSize-1) == 0, "block size should be a power of two")
}

func TestDefaultOpenerPreallocates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")

	f, _, err := DefaultOpener(path, 1<<20)
	requireDirectIO(t, err)
	require.NoError(t, err)
	defer f.Close()

	info, err := f.Stat()
	require.NoError(t, err)
	require.GreaterOrEqual(t, info.Size(), int64(1<<20))
}

func TestBlockSizeIsPositive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	size, err := BlockSize(f)
	require.NoError(t, err)
	require.Greater(t, size, 0)
}
