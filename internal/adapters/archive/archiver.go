// Package archive lists and extracts source archives.
//
// The system tar is preferred because it understands every format upstream
// projects ship. Without it the common tar compressions and zip are handled
// in process.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/zerr"
)

// Archiver implements ports.Archiver.
type Archiver struct {
	exec   ports.Executor
	native bool
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithNative disables the system tar.
func WithNative() Option {
	return func(a *Archiver) {
		a.native = true
	}
}

// New creates an Archiver that runs tar through exec.
func New(executor ports.Executor, opts ...Option) *Archiver {
	a := &Archiver{exec: executor}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Archiver) useTar() bool {
	if a.native {
		return false
	}
	_, err := exec.LookPath("tar")
	return err == nil
}

// List returns the entry names of archive.
func (a *Archiver) List(ctx context.Context, archive string) ([]string, error) {
	var names []string
	var err error

	if a.useTar() {
		var out []byte
		out, err = a.exec.Output(ctx, domain.Command{Name: "tar", Args: []string{"-tf", archive}})
		for _, line := range strings.Split(string(out), "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				names = append(names, line)
			}
		}
	} else {
		names, err = listNative(archive)
	}

	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrArchiveListFailed, err.Error()), "path", archive)
	}
	return names, nil
}

// Extract unpacks archive into dir, creating dir if needed.
func (a *Archiver) Extract(ctx context.Context, archive, dir string) error {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create extraction directory"), "path", dir)
	}

	var err error
	if a.useTar() {
		err = a.exec.Run(ctx, domain.Command{Name: "tar", Args: []string{"-xf", archive}, Dir: dir})
	} else {
		err = extractNative(archive, dir)
	}

	if err != nil {
		if errors.Is(err, domain.ErrIllegalArchivePath) || errors.Is(err, domain.ErrUnsupportedArchive) {
			return zerr.With(err, "path", archive)
		}
		return zerr.With(zerr.Wrap(domain.ErrExtractFailed, err.Error()), "path", archive)
	}
	return nil
}

func isZip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zip")
}

// openTar returns a tar reader for path based on its extension.
func openTar(path string) (*tar.Reader, func(), error) {
	f, err := os.Open(path) //nolint:gosec // archive paths derive from the layout
	if err != nil {
		return nil, nil, err
	}

	closers := []func(){func() { _ = f.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var r io.Reader = f
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		gz, err := pgzip.NewReader(f)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = gz.Close() })
		r = gz
	case strings.HasSuffix(lower, ".tar.bz2") || strings.HasSuffix(lower, ".tbz2"):
		r = bzip2.NewReader(f)
	case strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		r = xzr
	case strings.HasSuffix(lower, ".tar.zst") || strings.HasSuffix(lower, ".tzst"):
		zst, err := zstd.NewReader(f)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, zst.Close)
		r = zst
	case strings.HasSuffix(lower, ".tar"):
	default:
		closeAll()
		return nil, nil, zerr.Wrap(domain.ErrUnsupportedArchive, filepath.Base(path))
	}

	return tar.NewReader(r), closeAll, nil
}

func listNative(path string) ([]string, error) {
	if isZip(path) {
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = zr.Close() }()

		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		return names, nil
	}

	tr, closeAll, err := openTar(path)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	var names []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		names = append(names, hdr.Name)
	}
}

func extractNative(path, dir string) error {
	dest, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	if isZip(path) {
		return extractZip(path, dest)
	}

	tr, closeAll, err := openTar(path)
	if err != nil {
		return err
	}
	defer closeAll()

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		if err := checkParents(dest, target); err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return err
			}
		case tar.TypeReg:
			removeSymlink(target)
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil { //nolint:gosec // tar modes fit in 32 bits
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !within(dest, filepath.Join(filepath.Dir(target), hdr.Linkname)) {
				return zerr.With(zerr.Wrap(domain.ErrIllegalArchivePath, hdr.Name), "link", hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			source, err := safeJoin(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := checkParents(dest, source); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return err
			}
		}
	}
}

func extractZip(path, dest string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if err := checkParents(dest, target); err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(target, rc, f.Mode().Perm())
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// safeJoin resolves name under dest and rejects entries escaping it.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !within(dest, target) {
		return "", zerr.Wrap(domain.ErrIllegalArchivePath, name)
	}
	return target, nil
}

func within(dest, path string) bool {
	return path == dest || strings.HasPrefix(path, dest+string(os.PathSeparator))
}

// checkParents rejects targets whose directories below dest include a
// symlink, so no entry lands behind a link an earlier entry created.
func checkParents(dest, target string) error {
	rel, err := filepath.Rel(dest, filepath.Dir(target))
	if err != nil || rel == "." {
		return err
	}

	current := dest
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return zerr.With(zerr.Wrap(domain.ErrIllegalArchivePath, "entry below a symlink"), "link", current)
		}
	}
	return nil
}

// removeSymlink drops a symlink at target so a regular entry replaces it
// instead of writing through it.
func removeSymlink(target string) {
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		_ = os.Remove(target)
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return err
	}
	if perm == 0 {
		perm = domain.FilePerm
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) //nolint:gosec // target is checked by safeJoin
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil { //nolint:gosec // archives are checksum verified before extraction
		_ = out.Close()
		return err
	}
	return out.Close()
}
