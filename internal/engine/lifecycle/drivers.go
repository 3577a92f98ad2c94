package lifecycle

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/engine/prefix"
	"go.trai.ch/zerr"
)

// makeDriver builds with gmake in a symlink copy of the source tree.
type makeDriver struct {
	common
}

func (d *makeDriver) Configure(ctx context.Context, st *domain.BuildState, _ io.Writer) error {
	if err := d.configure(ctx, st); err != nil {
		return err
	}
	return prefix.Farm(st.Source, st.BuildPath)
}

func (d *makeDriver) Build(ctx context.Context, st *domain.BuildState, out io.Writer) error {
	if st.Xcode {
		return zerr.With(zerr.Wrap(domain.ErrXcodeUnsupported, d.in.Target.Name), "driver", string(d.in.Target.Driver))
	}

	args := []string{
		"-j", strconv.Itoa(st.Jobs),
		"CC=" + st.Platform.CC,
		"CXX=" + st.Platform.CXX,
	}
	args = append(args, d.in.Options.MakeArgs()...)
	return d.in.run(ctx, d.workPath(st), out, "gmake", args...)
}

func (d *makeDriver) workPath(st *domain.BuildState) string {
	return filepath.Join(st.BuildPath, d.in.Target.SrcRoot)
}

// configureMakeDriver runs the autoconf configure script before building like makeDriver.
type configureMakeDriver struct {
	makeDriver
}

func (d *configureMakeDriver) Configure(ctx context.Context, st *domain.BuildState, out io.Writer) error {
	if err := d.makeDriver.Configure(ctx, st, out); err != nil {
		return err
	}

	work := d.workPath(st)
	base := append([]string{"--prefix=" + st.InstallPath}, d.in.Options.MakeArgs()...)
	variants := [][]string{
		append(append([]string{}, base...), "--host="+st.Platform.Host, "--disable-dependency-tracking"),
		append(append([]string{}, base...), "--disable-dependency-tracking"),
		base,
	}

	var err error
	for _, args := range variants {
		err = d.in.run(ctx, work, out, filepath.Join(work, "configure"), args...)
		if err == nil || !errors.Is(err, domain.ErrCommandFailed) {
			return err
		}
	}
	return err
}

// cmakeDriver generates a Makefile or an Xcode project with cmake.
type cmakeDriver struct {
	common
}

func (d *cmakeDriver) Configure(ctx context.Context, st *domain.BuildState, out io.Writer) error {
	if err := d.configure(ctx, st); err != nil {
		return err
	}

	p := st.Platform
	args := []string{
		"-DCMAKE_BUILD_TYPE=Release",
		"-DCMAKE_INSTALL_PREFIX=" + st.InstallPath,
		"-DCMAKE_PREFIX_PATH=" + st.Layout.Prefix(),
	}
	if st.Xcode {
		args = append(args, "-GXcode")
	} else {
		args = append(args,
			"-GUnix Makefiles",
			"-DCMAKE_C_COMPILER="+p.CC,
			"-DCMAKE_CXX_COMPILER="+p.CXX,
		)
		if !p.IsNative(d.in.tb.Native) {
			args = append(args, "-DCMAKE_SYSTEM_NAME=Darwin", "-DCMAKE_SYSTEM_PROCESSOR="+p.CMakeProcessor())
		}
	}
	if !p.OSVersion.IsZero() {
		args = append(args, "-DCMAKE_OSX_DEPLOYMENT_TARGET="+p.OSVersion.String())
	}
	if p.SDKPath != "" {
		args = append(args, "-DCMAKE_OSX_SYSROOT="+p.SDKPath)
	}
	args = append(args, d.in.Options.CMakeArgs()...)
	args = append(args, filepath.Join(st.Source, d.in.Target.SrcRoot))

	return d.in.run(ctx, st.BuildPath, out, "cmake", args...)
}

func (d *cmakeDriver) Build(ctx context.Context, st *domain.BuildState, out io.Writer) error {
	if st.Xcode {
		return d.in.run(ctx, st.BuildPath, out, "cmake", "--open", ".")
	}

	args := []string{"-j", strconv.Itoa(st.Jobs)}
	if st.Verbose {
		args = append(args, "VERBOSE=1")
	}
	return d.in.run(ctx, st.BuildPath, out, "gmake", args...)
}
