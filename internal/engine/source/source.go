// Package source acquires target source trees: git checkouts and
// checksummed archives with their patches.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/zerr"
)

// Acquirer implements the acquisition pipeline.
type Acquirer struct {
	executor ports.Executor
	fetcher  ports.Fetcher
	archiver ports.Archiver
	vcs      ports.VCS
	logger   ports.Logger
}

// New creates an Acquirer.
func New(
	executor ports.Executor,
	fetcher ports.Fetcher,
	archiver ports.Archiver,
	vcs ports.VCS,
	logger ports.Logger,
) *Acquirer {
	return &Acquirer{
		executor: executor,
		fetcher:  fetcher,
		archiver: archiver,
		vcs:      vcs,
		logger:   logger,
	}
}

// Acquire makes src available at st.Source. Targets without a source are a no-op.
func (a *Acquirer) Acquire(ctx context.Context, st *domain.BuildState, src domain.Source, out io.Writer) error {
	switch src.Kind() {
	case domain.SourceGit:
		return a.Checkout(ctx, st, *src.Git)
	case domain.SourceArchive:
		return a.Download(ctx, st, *src.Package, out)
	default:
		return nil
	}
}

// Checkout clones the repository into st.Source unless it is already there.
func (a *Acquirer) Checkout(ctx context.Context, st *domain.BuildState, git domain.GitSource) error {
	if exists(st.Source) {
		return nil
	}

	if err := a.vcs.Clone(ctx, st.Layout.Root, git.URL, st.Source); err != nil {
		return err
	}
	if git.Branch != "" {
		return a.vcs.Checkout(ctx, st.Source, git.Branch)
	}
	return nil
}

// Download fetches, verifies, extracts and patches pkg below st.Source.
// On success st.Source points at the extracted tree and st.BuildPath gains
// the archive's root component. External sources are left untouched.
func (a *Acquirer) Download(ctx context.Context, st *domain.BuildState, pkg domain.SourcePackage, out io.Writer) error {
	if st.ExternalSource {
		return nil
	}

	if err := os.MkdirAll(st.Source, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrDownloadFailed, err.Error()), "path", st.Source)
	}

	file := filepath.Join(st.Source, pkg.FileName())
	if !exists(file) {
		a.logger.Info("Downloading " + pkg.URL)
		if err := a.fetcher.Fetch(ctx, pkg.URL, file); err != nil {
			_ = os.Remove(file)
			return zerr.With(zerr.With(zerr.Wrap(domain.ErrDownloadFailed, err.Error()), "url", pkg.URL), "path", file)
		}
	}

	if err := verify(file, pkg.SHA256); err != nil {
		return err
	}

	entries, err := a.archiver.List(ctx, file)
	if err != nil {
		return err
	}
	component, ok := archiveRoot(entries)
	if !ok {
		return zerr.With(zerr.Wrap(domain.ErrArchiveRootNotFound, "archive has no root directory"), "path", file)
	}

	work := filepath.Join(st.Source, component)
	if !exists(work) {
		if err := a.archiver.Extract(ctx, file, st.Source); err != nil {
			_ = os.RemoveAll(work)
			return zerr.With(zerr.Wrap(domain.ErrExtractFailed, err.Error()), "path", file)
		}
	}

	for _, name := range pkg.Patches {
		if err := a.applyPatch(ctx, st.Layout.PatchFile(name), work, out); err != nil {
			return err
		}
	}

	st.Source = work
	st.BuildPath = filepath.Join(st.BuildPath, component)
	return nil
}

// applyPatch applies patch to dir unless a dry run shows it is already applied.
func (a *Acquirer) applyPatch(ctx context.Context, patch, dir string, out io.Writer) error {
	if !exists(patch) {
		return zerr.With(zerr.Wrap(domain.ErrPatchNotFound, filepath.Base(patch)), "path", patch)
	}

	args := []string{"--strip=1", "--input=" + patch}
	dryRun := domain.Command{
		Name:   "patch",
		Args:   append([]string{"--dry-run"}, args...),
		Dir:    dir,
		Stdout: io.Discard,
	}
	if err := a.executor.Run(ctx, dryRun); err != nil {
		if errors.Is(err, domain.ErrCommandFailed) {
			return nil
		}
		return err
	}

	if err := a.executor.Run(ctx, domain.Command{Name: "patch", Args: args, Dir: dir, Stdout: out}); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrPatchFailed, err.Error()), "path", patch)
	}
	return nil
}

// RunPkgConfig runs prefix/bin/pkg-config in the build directory and returns
// its output without the trailing newline.
func (a *Acquirer) RunPkgConfig(ctx context.Context, st *domain.BuildState, args ...string) (string, error) {
	if err := os.MkdirAll(st.BuildPath, domain.DirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrPkgConfigFailed, err.Error()), "path", st.BuildPath)
	}

	output, err := a.executor.Output(ctx, domain.Command{
		Name: filepath.Join(st.Layout.Bin(), "pkg-config"),
		Args: args,
		Dir:  st.BuildPath,
	})
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrPkgConfigFailed, err.Error()), "args", strings.Join(args, " "))
	}
	return strings.TrimRight(string(output), "\n"), nil
}

// Checksum returns the hex SHA-256 of the file at path.
func Checksum(path string) (string, error) {
	// #nosec G304 -- path is a downloaded archive under source/
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // read-only

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func verify(file, expected string) error {
	actual, err := Checksum(file)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrDownloadFailed, err.Error()), "path", file)
	}
	if actual == strings.ToLower(expected) {
		return nil
	}

	_ = os.Remove(file)
	err = zerr.With(zerr.Wrap(domain.ErrChecksumMismatch, filepath.Base(file)), "path", file)
	err = zerr.With(err, "expected", expected)
	return zerr.With(err, "actual", actual)
}

// archiveRoot returns the first path component of the first entry that has one.
func archiveRoot(entries []string) (string, bool) {
	for _, e := range entries {
		e = strings.TrimPrefix(e, "./")
		if component, _, found := strings.Cut(e, "/"); found && component != "" {
			return component, true
		}
	}
	return "", false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
