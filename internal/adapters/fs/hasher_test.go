package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/unibuild/internal/adapters/fs"
	"go.trai.ch/unibuild/internal/core/domain"
)

// expectedSum is the XXH64 of "start-content".
// If this changes, merged install trees compare files differently.
const expectedSum uint64 = 0x92ee87ac4e0a0b35

func TestHasher_FileDigest_Golden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dummy.txt")
	require.NoError(t, os.WriteFile(path, []byte("start-content"), domain.PrivateFilePerm))

	digest, err := fs.NewHasher().FileDigest(path)
	require.NoError(t, err)

	assert.Equal(t, expectedSum, digest.Sum, "Hasher algorithm changed! Verify if this is intentional.")
	assert.Equal(t, int64(len("start-content")), digest.Size)
}

func TestHasher_FileDigest(t *testing.T) {
	hasher := fs.NewHasher()
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), domain.PrivateFilePerm))
		return path
	}

	t.Run("Same Content", func(t *testing.T) {
		a, err := hasher.FileDigest(write("a.h", "#define X 1\n"))
		require.NoError(t, err)
		b, err := hasher.FileDigest(write("b.h", "#define X 1\n"))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("Content Change", func(t *testing.T) {
		a, err := hasher.FileDigest(write("c.h", "#define X 1\n"))
		require.NoError(t, err)
		b, err := hasher.FileDigest(write("d.h", "#define X 2\n"))
		require.NoError(t, err)
		assert.NotEqual(t, a.Sum, b.Sum)
		assert.Equal(t, a.Size, b.Size)
	})

	t.Run("Empty File", func(t *testing.T) {
		d, err := hasher.FileDigest(write("empty", ""))
		require.NoError(t, err)
		assert.Equal(t, uint64(0xef46db3751d8e999), d.Sum)
		assert.Zero(t, d.Size)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := hasher.FileDigest(filepath.Join(dir, "missing"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open file")
	})
}
