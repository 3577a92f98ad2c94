package ports

import "context"

// Fetcher downloads a remote file.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch writes the content at url to dst.
	// On failure no file is left at dst.
	Fetch(ctx context.Context, url, dst string) error
}
