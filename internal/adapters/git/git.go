// Package git implements the version control operations on top of the git CLI.
package git

import (
	"context"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/zerr"
)

// Git implements ports.VCS.
type Git struct {
	exec ports.Executor
}

// New creates a Git that runs commands through executor.
func New(executor ports.Executor) *Git {
	return &Git{exec: executor}
}

// Clone runs git clone with submodules from root.
func (g *Git) Clone(ctx context.Context, root, url, dir string) error {
	err := g.exec.Run(ctx, domain.Command{
		Name: "git",
		Args: []string{"clone", "--recurse-submodules", url, dir},
		Dir:  root,
	})
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCloneFailed, err.Error()), "url", url)
	}
	return nil
}

// Checkout creates a local branch tracking origin/branch.
func (g *Git) Checkout(ctx context.Context, dir, branch string) error {
	err := g.exec.Run(ctx, domain.Command{
		Name: "git",
		Args: []string{"checkout", "-b", branch, "origin/" + branch},
		Dir:  dir,
	})
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCheckoutFailed, err.Error()), "branch", branch)
	}
	return nil
}

// Clean removes ignored files and directories under root, limited to paths when given.
func (g *Git) Clean(ctx context.Context, root string, paths ...string) error {
	args := append([]string{"clean", "-dX", "--force"}, paths...)
	return g.exec.Run(ctx, domain.Command{Name: "git", Args: args, Dir: root})
}
