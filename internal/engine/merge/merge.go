// Package merge fuses per-architecture install trees into one universal tree.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/unibuild/internal/engine/artifact"
	"go.trai.ch/zerr"
)

const (
	libtoolArchiveExt = ".la"
	appBundleContents = ".app/Contents/"
)

// Merger combines install trees built for different architectures.
type Merger struct {
	executor  ports.Executor
	hasher    ports.Hasher
	logger    ports.Logger
	divergent []string
}

// New creates a Merger. Plain files matching one of the divergent glob
// patterns may differ between architectures without a warning.
func New(executor ports.Executor, hasher ports.Hasher, logger ports.Logger, divergent []string) *Merger {
	return &Merger{
		executor:  executor,
		hasher:    hasher,
		logger:    logger,
		divergent: divergent,
	}
}

// Merge recreates dst from the tree of srcs[0], fusing binaries of all srcs with lipo.
// Tool output is written to out.
func (m *Merger) Merge(ctx context.Context, srcs []string, dst string, out io.Writer) error {
	if len(srcs) == 0 {
		return zerr.With(zerr.Wrap(domain.ErrMergeFailed, "no install trees to merge"), "destination", dst)
	}

	if err := os.RemoveAll(dst); err != nil {
		return failed(err, dst)
	}
	if err := os.MkdirAll(dst, domain.DirPerm); err != nil {
		return failed(err, dst)
	}

	primary := srcs[0]
	return filepath.WalkDir(primary, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return failed(err, p)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(primary, p)
		if err != nil {
			return failed(err, p)
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return failed(err, target)
			}
			return nil
		case filepath.Ext(p) == libtoolArchiveExt:
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			if err := artifact.CopySymlink(p, target); err != nil {
				return failed(err, target)
			}
			return nil
		}

		return m.mergeFile(ctx, srcs, rel, target, out)
	})
}

func (m *Merger) mergeFile(ctx context.Context, srcs []string, rel, target string, out io.Writer) error {
	paths := make([]string, len(srcs))
	for i, src := range srcs {
		paths[i] = filepath.Join(src, rel)
	}

	for i := 1; i < len(paths); i++ {
		if _, err := os.Lstat(paths[i]); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return failed(err, paths[i])
			}
			m.logger.Warn(fmt.Sprintf("%s is missing from %s, copying it from %s", rel, srcs[i], srcs[0]))
			return copyFile(paths[0], target)
		}
	}

	kind, err := classify(paths[0])
	if err != nil {
		return failed(err, paths[0])
	}

	switch kind {
	case domain.Executable, domain.StaticArchive:
		args := append(append([]string{}, paths...), "-create", "-output", target)
		if err := m.executor.Run(ctx, domain.Command{Name: "lipo", Args: args, Stdout: out}); err != nil {
			return zerr.With(zerr.Wrap(err, "lipo failed"), "file", rel)
		}
		if kind == domain.Executable && !strings.Contains(filepath.ToSlash(target), appBundleContents) {
			sign := domain.Command{Name: "codesign", Args: []string{"--sign", "-", target}, Stdout: out}
			if err := m.executor.Run(ctx, sign); err != nil {
				return zerr.With(zerr.Wrap(err, "codesign failed"), "file", rel)
			}
		}
		return nil
	default:
		same, err := m.identical(paths)
		if err != nil {
			return err
		}
		if !same && !m.allowed(rel) {
			m.logger.Warn(fmt.Sprintf("%s differs between architectures, using the copy from %s", rel, srcs[0]))
		}
		return copyFile(paths[0], target)
	}
}

func (m *Merger) identical(paths []string) (bool, error) {
	first, err := m.hasher.FileDigest(paths[0])
	if err != nil {
		return false, failed(err, paths[0])
	}
	for _, p := range paths[1:] {
		d, err := m.hasher.FileDigest(p)
		if err != nil {
			return false, failed(err, p)
		}
		if d != first {
			return false, nil
		}
	}
	return true, nil
}

func (m *Merger) allowed(rel string) bool {
	slashed := filepath.ToSlash(rel)
	for _, pattern := range m.divergent {
		if ok, _ := path.Match(pattern, slashed); ok {
			return true
		}
		if ok, _ := path.Match(pattern, path.Base(slashed)); ok {
			return true
		}
	}
	return false
}

// FillMissing copies files and symlinks that exist only in secondary trees into dst.
// Each rotation of srcs is walked in turn; dst is never cleared.
func (m *Merger) FillMissing(srcs []string, dst string) error {
	for i := 1; i < len(srcs); i++ {
		root := srcs[i]
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if err := fillFrom(root, dst); err != nil {
			return err
		}
	}
	return nil
}

func fillFrom(root, dst string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return failed(err, p)
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return failed(err, p)
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return failed(err, target)
			}
			return nil
		}
		if filepath.Ext(p) == libtoolArchiveExt {
			return nil
		}
		if _, err := os.Lstat(target); err == nil {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if err := artifact.CopySymlink(p, target); err != nil {
				return failed(err, target)
			}
			return nil
		}
		return copyFile(p, target)
	})
}

func classify(p string) (domain.FileKind, error) {
	// #nosec G304 -- p is a file of an install tree
	f, err := os.Open(p)
	if err != nil {
		return domain.PlainFile, err
	}
	defer f.Close() //nolint:errcheck // read-only

	header := make([]byte, domain.HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.PlainFile, err
	}
	return domain.ClassifyHeader(header[:n]), nil
}

func copyFile(src, dst string) error {
	if err := artifact.CopyFile(src, dst); err != nil {
		return failed(err, dst)
	}
	return nil
}

func failed(err error, p string) error {
	return zerr.With(zerr.Wrap(domain.ErrMergeFailed, err.Error()), "path", p)
}
