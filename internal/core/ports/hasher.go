package ports

import "go.trai.ch/unibuild/internal/core/domain"

// Hasher digests installed files so per-architecture copies can be compared.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// FileDigest returns the content hash and size of the file at path.
	FileDigest(path string) (domain.FileDigest, error)
}
