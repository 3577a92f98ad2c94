package artifact

import (
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/zerr"
)

// CopyToBin copies build/<name> to install/bin/<newName>. An empty newName keeps the name.
func CopyToBin(build, install, name, newName string) error {
	if newName == "" {
		newName = name
	}

	bin := filepath.Join(install, "bin")
	if err := os.MkdirAll(bin, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", bin)
	}

	if err := CopyFile(filepath.Join(build, name), filepath.Join(bin, newName)); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "file", name)
	}
	return nil
}

// CopyFile copies the contents and permission bits of src to dst, replacing dst.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	// #nosec G304 -- src is a file of a build or install tree
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only

	// #nosec G304 -- dst is a file of an install tree
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}

// CopySymlink recreates the symlink src at dst with the same target.
func CopySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, dst)
}

// CopyTree copies the directory src to dst. Symlinks are copied as symlinks.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&os.ModeSymlink != 0:
			return CopySymlink(path, target)
		case d.IsDir():
			return os.MkdirAll(target, domain.DirPerm)
		default:
			return CopyFile(path, target)
		}
	})
}
