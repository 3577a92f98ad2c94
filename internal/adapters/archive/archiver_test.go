package archive_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/unibuild/internal/adapters/archive"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type entry struct {
	name, body, link string
	dir              bool
}

var zlibEntries = []entry{
	{name: "zlib-1.2.11/", dir: true},
	{name: "zlib-1.2.11/configure", body: "#!/bin/sh\n"},
	{name: "zlib-1.2.11/zlib.h", body: "#define ZLIB_VERSION \"1.2.11\"\n"},
	{name: "zlib-1.2.11/zconf.h.link", link: "zlib.h"},
}

func writeTar(t *testing.T, w *tar.Writer, entries []entry) {
	t.Helper()
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		switch {
		case e.dir:
			hdr.Typeflag, hdr.Mode = tar.TypeDir, 0o755
		case e.link != "":
			hdr.Typeflag, hdr.Linkname = tar.TypeSymlink, e.link
		}
		require.NoError(t, w.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := w.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
}

func tarGz(t *testing.T, dir string, entries []entry) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	writeTar(t, tar.NewWriter(gz), entries)
	require.NoError(t, gz.Close())

	path := filepath.Join(dir, "zlib-1.2.11.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func tarZst(t *testing.T, dir string, entries []entry) string {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	writeTar(t, tar.NewWriter(zw), entries)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, "zlib-1.2.11.tar.zst")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestArchiver_Native(t *testing.T) {
	builders := map[string]func(*testing.T, string, []entry) string{
		"gzip": tarGz,
		"zstd": tarZst,
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := build(t, dir, zlibEntries)
			a := archive.New(nil, archive.WithNative())

			names, err := a.List(t.Context(), path)
			require.NoError(t, err)
			assert.Equal(t, []string{
				"zlib-1.2.11/", "zlib-1.2.11/configure", "zlib-1.2.11/zlib.h", "zlib-1.2.11/zconf.h.link",
			}, names)

			out := filepath.Join(dir, "source")
			require.NoError(t, a.Extract(t.Context(), path, out))

			data, err := os.ReadFile(filepath.Join(out, "zlib-1.2.11", "zlib.h"))
			require.NoError(t, err)
			assert.Contains(t, string(data), "1.2.11")

			link, err := os.Readlink(filepath.Join(out, "zlib-1.2.11", "zconf.h.link"))
			require.NoError(t, err)
			assert.Equal(t, "zlib.h", link)
		})
	}
}

func TestArchiver_NativeZip(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("cmake-3.20.5/bin/cmake")
	require.NoError(t, err)
	_, err = w.Write([]byte("binary"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, "cmake.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	a := archive.New(nil, archive.WithNative())
	names, err := a.List(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cmake-3.20.5/bin/cmake"}, names)

	require.NoError(t, a.Extract(t.Context(), path, filepath.Join(dir, "out")))
	assert.FileExists(t, filepath.Join(dir, "out", "cmake-3.20.5", "bin", "cmake"))
}

func TestArchiver_RejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	path := tarGz(t, dir, []entry{{name: "../evil", body: "x"}})

	err := archive.New(nil, archive.WithNative()).Extract(t.Context(), path, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalArchivePath))
	assert.NoFileExists(t, filepath.Join(dir, "evil"))
}

func TestArchiver_Symlinks(t *testing.T) {
	tests := []struct {
		name    string
		entries func(outside string) []entry
		wantErr bool
	}{
		{
			name: "link inside the tree",
			entries: func(string) []entry {
				return []entry{
					{name: "pkg/zconf.h", body: "#define Z_PREFIX\n"},
					{name: "pkg/include/zconf.h", link: "../zconf.h"},
				}
			},
		},
		{
			name: "absolute link",
			entries: func(outside string) []entry {
				return []entry{
					{name: "pkg/link", link: outside},
					{name: "pkg/link/escaped.txt", body: "x"},
				}
			},
			wantErr: true,
		},
		{
			name: "relative link leaving the tree",
			entries: func(string) []entry {
				return []entry{
					{name: "pkg/link", link: "../../outside"},
					{name: "pkg/link/escaped.txt", body: "x"},
				}
			},
			wantErr: true,
		},
		{
			name: "write through a chained link",
			entries: func(string) []entry {
				return []entry{
					{name: "pkg/up", link: ".."},
					{name: "pkg/up2", link: "up/.."},
					{name: "pkg/up2/escaped.txt", body: "x"},
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			outside := filepath.Join(dir, "outside")
			require.NoError(t, os.MkdirAll(outside, 0o750))
			out := filepath.Join(dir, "out")
			path := tarGz(t, dir, tt.entries(outside))

			err := archive.New(nil, archive.WithNative()).Extract(t.Context(), path, out)
			assert.NoFileExists(t, filepath.Join(outside, "escaped.txt"))
			assert.NoFileExists(t, filepath.Join(dir, "escaped.txt"))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrIllegalArchivePath))
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(filepath.Join(out, "pkg", "include", "zconf.h"))
			require.NoError(t, err)
			assert.Equal(t, "#define Z_PREFIX\n", string(data))
		})
	}
}

func TestArchiver_ExistingSymlinkInDestination(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "outside")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outside, 0o750))
	require.NoError(t, os.MkdirAll(out, 0o750))
	require.NoError(t, os.Symlink(outside, filepath.Join(out, "pkg")))

	path := tarGz(t, dir, []entry{{name: "pkg/escaped.txt", body: "x"}})
	err := archive.New(nil, archive.WithNative()).Extract(t.Context(), path, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalArchivePath))
	assert.NoFileExists(t, filepath.Join(outside, "escaped.txt"))
}

func TestArchiver_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.tar.lz")
	require.NoError(t, os.WriteFile(path, []byte("lz"), 0o600))

	a := archive.New(nil, archive.WithNative())
	err := a.Extract(t.Context(), path, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedArchive))

	_, err = a.List(t.Context(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrArchiveListFailed))
}

func TestArchiver_SystemTar(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not installed")
	}

	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)
	dir := t.TempDir()
	out := filepath.Join(dir, "source", "zlib")

	executor.EXPECT().
		Output(gomock.Any(), domain.Command{Name: "tar", Args: []string{"-tf", "/work/zlib.tar.gz"}}).
		Return([]byte("zlib-1.2.11/\nzlib-1.2.11/zlib.h\n"), nil)
	executor.EXPECT().
		Run(gomock.Any(), domain.Command{Name: "tar", Args: []string{"-xf", "/work/zlib.tar.gz"}, Dir: out}).
		Return(nil)

	a := archive.New(executor)
	names, err := a.List(t.Context(), "/work/zlib.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, []string{"zlib-1.2.11/", "zlib-1.2.11/zlib.h"}, names)

	require.NoError(t, a.Extract(t.Context(), "/work/zlib.tar.gz", out))
	assert.DirExists(t, out)
}

func TestArchiver_SystemTarFailure(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not installed")
	}

	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)
	executor.EXPECT().Run(gomock.Any(), gomock.Any()).Return(domain.ErrCommandFailed)

	err := archive.New(executor).Extract(t.Context(), "/work/broken.tar.gz", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExtractFailed))
}
