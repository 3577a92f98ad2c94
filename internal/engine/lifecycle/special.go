package lifecycle

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	shellwords "github.com/caarlos0/go-shellwords"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/zerr"
)

// Bundled cmake release installed when no cmake binary can be found.
const (
	CMakeURL    = "https://github.com/Kitware/CMake/releases/download/v3.20.5/cmake-3.20.5-macos-universal.tar.gz"
	CMakeSHA256 = "000828af55268853ba21b91f8ce3bfb9365aa72aee960fc7f0c01a71f3a2217a"
)

// testHeader is force-included into every dependency smoke test.
const testHeader = "unibuild.h"

// cleanDriver removes git-ignored files from the project root or from deps/.
type cleanDriver struct {
	in       *Instance
	depsOnly bool
}

func (d *cleanDriver) Build(ctx context.Context, st *domain.BuildState, _ io.Writer) error {
	if st.Xcode {
		return zerr.With(zerr.Wrap(domain.ErrXcodeUnsupported, d.in.Target.Name), "driver", string(d.in.Target.Driver))
	}

	var paths []string
	if d.depsOnly {
		paths = append(paths, st.Layout.Deps())
	}
	return d.in.tb.VCS.Clean(ctx, st.Layout.Root, paths...)
}

// downloadCMakeDriver installs cmake into deps/cmake unless one is already usable.
type downloadCMakeDriver struct {
	in *Instance
}

func (d *downloadCMakeDriver) Build(ctx context.Context, st *domain.BuildState, out io.Writer) error {
	candidates := []string{
		"cmake",
		filepath.Join(st.Layout.Bin(), "cmake"),
		filepath.Join(cmakeBundlePath, "cmake"),
	}
	for _, candidate := range candidates {
		err := d.in.tb.Executor.Run(ctx, domain.Command{Name: candidate, Args: []string{"--version"}, Stdout: out})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	pkg := domain.SourcePackage{URL: CMakeURL, SHA256: CMakeSHA256}
	if err := d.in.tb.Sources.Download(ctx, st, pkg, out); err != nil {
		return err
	}

	target := filepath.Join(st.Layout.Deps(), "cmake")
	if err := os.RemoveAll(target); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", target)
	}
	if err := os.MkdirAll(target, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", target)
	}

	contents := filepath.Join(st.Source, "CMake.app", "Contents")
	for _, dir := range []string{"bin", "share"} {
		if err := os.Rename(filepath.Join(contents, dir), filepath.Join(target, dir)); err != nil {
			return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", filepath.Join(contents, dir))
		}
	}
	if err := os.RemoveAll(st.Source); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", st.Source)
	}
	return nil
}

// testDepsDriver compiles every test/*.cpp as a universal binary against its
// pkg-config package and runs it.
type testDepsDriver struct {
	in *Instance
}

func (d *testDepsDriver) Configure(ctx context.Context, st *domain.BuildState, _ io.Writer) error {
	return common{d.in}.configure(ctx, st)
}

func (d *testDepsDriver) Build(ctx context.Context, st *domain.BuildState, out io.Writer) error {
	if st.Xcode {
		return zerr.With(zerr.Wrap(domain.ErrXcodeUnsupported, d.in.Target.Name), "driver", string(d.in.Target.Driver))
	}

	dir := st.Layout.Tests()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read test directory"), "path", dir)
	}

	var tests []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".cpp") {
			tests = append(tests, e.Name())
		}
	}
	slices.Sort(tests)

	for _, file := range tests {
		name := strings.TrimSuffix(file, ".cpp")
		if err := d.runTest(ctx, st, dir, name, out); err != nil {
			return zerr.With(zerr.Wrap(err, "test failed"), "test", name)
		}
	}
	return nil
}

func (d *testDepsDriver) runTest(ctx context.Context, st *domain.BuildState, dir, name string, out io.Writer) error {
	flags, err := d.in.tb.Sources.RunPkgConfig(ctx, st, "--cflags", "--libs", name)
	if err != nil {
		return err
	}
	extra, err := shellwords.Parse(flags)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrPkgConfigFailed, err.Error()), "output", flags)
	}

	d.in.tb.Logger.Info("Testing " + name)

	exe := filepath.Join(st.BuildPath, name)
	args := []string{
		"-arch", string(domain.ArchX86_64),
		"-arch", string(domain.ArchARM64),
		"-std=c++17",
		"-include", filepath.Join(dir, testHeader),
		"-o", exe,
		filepath.Join(dir, name+".cpp"),
	}
	args = append(args, extra...)
	if err := d.in.run(ctx, st.BuildPath, out, "clang", args...); err != nil {
		return err
	}
	return d.in.run(ctx, st.BuildPath, out, exe)
}
