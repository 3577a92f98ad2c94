package ports

import "context"

// VCS performs the version control operations the build needs.
//
//go:generate mockgen -source=vcs.go -destination=mocks/mock_vcs.go -package=mocks
type VCS interface {
	// Clone clones url with submodules into dir, running from root.
	Clone(ctx context.Context, root, url, dir string) error

	// Checkout creates branch tracking origin/branch in dir.
	Checkout(ctx context.Context, dir, branch string) error

	// Clean removes ignored files from root, optionally restricted to paths.
	Clean(ctx context.Context, root string, paths ...string) error
}
