// Package fs provides file system helpers backed by third-party hashing.
package fs

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher computes XXHash digests of files.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// FileDigest computes the XXHash of a file's content together with its size.
func (h *Hasher) FileDigest(path string) (domain.FileDigest, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return domain.FileDigest{}, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return domain.FileDigest{}, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return domain.FileDigest{Sum: hasher.Sum64(), Size: n}, nil
}
