// Package prefix assembles the prefix directory: a symlink farm exposing
// every installed dependency under one include, lib and bin hierarchy.
package prefix

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/engine/artifact"
	"go.trai.ch/zerr"
)

// Assemble creates prefix/ and links every dependency under deps/ into it.
// Stale links are removed once before the first dependency is linked.
func Assemble(layout domain.Layout) error {
	dst := layout.Prefix()
	if err := os.MkdirAll(dst, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrPrefixFailed, err.Error()), "path", dst)
	}

	entries, err := os.ReadDir(layout.Deps())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.With(zerr.Wrap(domain.ErrPrefixFailed, err.Error()), "path", layout.Deps())
	}

	cleaned := false
	for _, e := range entries {
		src := filepath.Join(layout.Deps(), e.Name())
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			continue
		}

		if !cleaned {
			if err := CleanDanglingLinks(dst); err != nil {
				return err
			}
			cleaned = true
		}

		if err := LinkTree(src, dst); err != nil {
			return zerr.With(err, "dependency", e.Name())
		}
	}
	return nil
}

// Farm links src into dst after removing dangling links from dst.
func Farm(src, dst string) error {
	if err := CleanDanglingLinks(dst); err != nil {
		return err
	}
	return LinkTree(src, dst)
}

// CleanDanglingLinks removes symlinks below root whose target no longer
// exists. Directory symlinks are followed.
func CleanDanglingLinks(root string) error {
	visited := make(map[string]bool)
	if err := cleanDir(root, visited); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrPrefixFailed, err.Error()), "path", root)
	}
	return nil
}

func cleanDir(dir string, visited map[string]bool) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if visited[resolved] {
		return nil
	}
	visited[resolved] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())

		if e.Type()&os.ModeSymlink == 0 {
			if e.IsDir() {
				if err := cleanDir(path, visited); err != nil {
					return err
				}
			}
			continue
		}

		info, err := os.Stat(path)
		switch {
		case err != nil:
			if err := os.Remove(path); err != nil {
				return err
			}
		case info.IsDir():
			if err := cleanDir(path, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// LinkTree mirrors the directories of src under dst and symlinks every
// other entry whose destination does not exist yet. Entries of src that are
// symlinks themselves are copied as symlinks.
func LinkTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrPrefixFailed, err.Error()), "path", src)
	}

	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())

		info, err := os.Stat(from)
		if err == nil && info.IsDir() {
			if err := os.MkdirAll(to, domain.DirPerm); err != nil {
				return zerr.With(zerr.Wrap(domain.ErrPrefixFailed, err.Error()), "path", to)
			}
			if err := LinkTree(from, to); err != nil {
				return err
			}
			continue
		}

		if _, err := os.Lstat(to); err == nil {
			continue
		}

		if e.Type()&os.ModeSymlink != 0 {
			err = artifact.CopySymlink(from, to)
		} else {
			err = os.Symlink(from, to)
		}
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrPrefixFailed, err.Error()), "path", to)
		}
	}
	return nil
}
