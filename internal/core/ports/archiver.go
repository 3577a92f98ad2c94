package ports

import "context"

// Archiver inspects and unpacks source archives.
//
//go:generate mockgen -source=archiver.go -destination=mocks/mock_archiver.go -package=mocks
type Archiver interface {
	// List returns the entry names of archive in archive order.
	List(ctx context.Context, archive string) ([]string, error)

	// Extract unpacks archive into dir.
	Extract(ctx context.Context, archive, dir string) error
}
