package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreReads(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(store.Dir(), "claims", "c1"), 0o750))
	path := writeFile(t, store, filepath.Join("claims", "c1", "invoice.txt"), "Invoice 42")

	for _, p := range []string{path, "claims/c1/invoice.txt", "./claims/c1/../c1/invoice.txt"} {
		data, err := store.Read(p)
		require.NoError(t, err, p)
		assert.Equal(t, "Invoice 42", string(data))
	}
}

func TestLocalStoreRefusesEscapes(t *testing.T) {
	store := newStore(t)
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(store.Dir(), "link.txt")))
	require.NoError(t, os.Symlink("/dev/zero", filepath.Join(store.Dir(), "zero")))

	t.Run("absolute path outside root", func(t *testing.T) {
		for _, p := range []string{"/etc/passwd", "/proc/self/environ", "/dev/zero", outside} {
			_, err := store.Read(p)
			assert.ErrorIs(t, err, ErrOutsideRoot, p)
		}
	})

	t.Run("parent traversal", func(t *testing.T) {
		rel, err := filepath.Rel(store.Dir(), outside)
		require.NoError(t, err)
		data, err := store.Read(rel)
		assert.Error(t, err)
		assert.Empty(t, data)
	})

	t.Run("symlink escape", func(t *testing.T) {
		for _, p := range []string{"link.txt", "zero"} {
			data, err := store.Read(p)
			assert.Error(t, err, p)
			assert.Empty(t, data)
		}
	})

	t.Run("directory", func(t *testing.T) {
		require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "sub"), 0o750))
		_, err := store.Read("sub")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a regular file")
	})
}

func TestLocalStoreSizeLimit(t *testing.T) {
	store := newStore(t)
	writeFile(t, store, "big.txt", strings.Repeat("a", maxLocalBytes+1))

	_, err := store.Read("big.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestOpenLocalStore(t *testing.T) {
	_, err := OpenLocalStore("")
	assert.ErrorIs(t, err, ErrLocalDisabled)

	dir := filepath.Join(t.TempDir(), "nested", "docs")
	store, err := OpenLocalStore(dir)
	require.NoError(t, err)
	defer store.Close()
	assert.DirExists(t, dir)
	assert.Equal(t, dir, store.Dir())
}
