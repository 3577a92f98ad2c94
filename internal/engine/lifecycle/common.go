package lifecycle

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/engine/artifact"
	"go.trai.ch/zerr"
)

// cmakeBundlePath is where the CMake.app bundle keeps its tools.
const cmakeBundlePath = "/Applications/CMake.app/Contents/bin"

var (
	flagVariables = []string{"CPPFLAGS", "CFLAGS", "CXXFLAGS", "OBJCFLAGS", "OBJCXXFLAGS"}

	projectName       = regexp.MustCompile(`(?i)project\s*\(\s*(\w[\w-]+)`)
	quotedProjectName = regexp.MustCompile(`(?i)project\s*\(\s*"?(\w[\s\w-]+)"?`)
)

// common holds the hooks shared by the build-tool families.
type common struct {
	in *Instance
}

func (c common) AcquireSource(ctx context.Context, st *domain.BuildState, out io.Writer) error {
	return c.in.tb.Sources.Acquire(ctx, st, c.in.Target.Source, out)
}

func (c common) Detect(st *domain.BuildState) bool {
	return detect(c.in.Target, st.Source)
}

// configure checks the platform requirements, creates the build directory
// and sets up the compiler environment.
func (c common) configure(ctx context.Context, st *domain.BuildState) error {
	in := c.in
	t := in.Target

	if err := st.RequireInstallPath(); err != nil {
		return err
	}

	arch := st.Platform.Arch
	if v := st.Platform.OSVersion; !v.IsZero() && v.Less(t.MinimumOSVersion(arch)) {
		err := zerr.With(zerr.Wrap(domain.ErrMinimumOSVersion, t.Name), "required", t.MinimumOSVersion(arch).String())
		return zerr.With(err, "actual", v.String())
	}
	if v, ok := domain.SDKVersionFromPath(st.Platform.SDKPath); ok && v.Less(t.MinimumSDKVersion(arch)) {
		err := zerr.With(zerr.Wrap(domain.ErrMinimumSDKVersion, t.Name), "required", t.MinimumSDKVersion(arch).String())
		return zerr.With(err, "actual", v.String())
	}

	if err := os.MkdirAll(st.BuildPath, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create build directory"), "path", st.BuildPath)
	}

	path, _ := in.tb.lookupEnv("PATH")
	if p, ok := in.Environment["PATH"]; ok {
		path = p
	}
	in.Environment["PATH"] = strings.Join([]string{st.Layout.Bin(), path, cmakeBundlePath}, string(os.PathListSeparator))

	if !st.Xcode {
		in.Environment["CC"] = st.Platform.CC
		in.Environment["CXX"] = st.Platform.CXX

		flags := platformFlags(st)
		for _, name := range flagVariables {
			in.appendEnv(name, strings.Join(append([]string{"-I" + st.Layout.Include()}, flags...), " "))
		}
		in.appendEnv("LDFLAGS", strings.Join(append([]string{"-L" + st.Layout.Lib()}, flags...), " "))
	}

	for _, o := range t.PkgConfigOptions {
		value, err := in.tb.Sources.RunPkgConfig(ctx, st, o.Args...)
		if err != nil {
			return err
		}
		in.Options.Set(o.Key, value)
	}

	if t.ForceCross && !st.Platform.IsNative(in.tb.Native) {
		in.Options.Set("FORCE_CROSSCOMPILE", "YES")
		in.Options.Set("IMPORT_EXECUTABLES", filepath.Join(st.NativeBuildPath, "ImportExecutables.cmake"))
	}

	for i := range in.Options {
		in.Options[i].Value = st.Expand(in.Options[i].Value)
	}
	for k, v := range in.Environment {
		in.Environment[k] = st.Expand(v)
	}
	return nil
}

func platformFlags(st *domain.BuildState) []string {
	var flags []string
	if st.Platform.SDKPath != "" {
		flags = append(flags, "-isysroot", st.Platform.SDKPath)
	}
	if !st.Platform.OSVersion.IsZero() {
		flags = append(flags, "-mmacosx-version-min="+st.Platform.OSVersion.String())
	}
	return flags
}

// PostBuild installs dependencies or copies the outputs of main targets,
// then runs the target's extra steps.
func (c common) PostBuild(ctx context.Context, st *domain.BuildState, out io.Writer) error {
	if st.Xcode {
		return nil
	}

	var err error
	if c.in.Target.Destination == domain.DestinationOutput {
		err = c.copyOutputs(st)
	} else {
		err = c.install(ctx, st, out)
	}
	if err != nil {
		return err
	}
	return c.extras(st)
}

func (c common) install(ctx context.Context, st *domain.BuildState, out io.Writer) error {
	if err := os.RemoveAll(st.InstallPath); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", st.InstallPath)
	}
	if err := c.in.run(ctx, st.BuildPath, out, "gmake", "install"); err != nil {
		return err
	}
	return artifact.RewritePCFiles(st.InstallPath, c.in.Target.Extras.PCLibs)
}

func (c common) copyOutputs(st *domain.BuildState) error {
	if err := os.RemoveAll(st.InstallPath); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", st.InstallPath)
	}
	if err := os.MkdirAll(st.InstallPath, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", st.InstallPath)
	}

	for _, output := range c.in.Target.Outputs {
		src := filepath.Join(st.BuildPath, output)
		dst := filepath.Join(st.InstallPath, filepath.Base(output))

		info, err := os.Stat(src)
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "output", output)
		}
		if info.IsDir() {
			err = artifact.CopyTree(src, dst)
		} else {
			err = artifact.CopyFile(src, dst)
		}
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "output", output)
		}
	}
	return nil
}

func (c common) extras(st *domain.BuildState) error {
	t := c.in.Target
	install := st.InstallPath

	for _, script := range t.Extras.ConfigScripts {
		if err := artifact.RewriteConfigScript(filepath.Join(install, script)); err != nil {
			return err
		}
	}
	for _, pc := range t.Extras.PCFiles {
		if err := artifact.WritePCFile(install, t.Name, pc); err != nil {
			return err
		}
	}
	for _, header := range t.Extras.PlatformHeaders {
		if err := artifact.MakePlatformHeader(install, st.Platform.Arch, header); err != nil {
			return err
		}
	}
	for _, bc := range t.Extras.BinCopies {
		if err := artifact.CopyToBin(st.BuildPath, install, bc.Name, bc.NewName); err != nil {
			return err
		}
	}
	if km := t.Extras.KeepModule; km != nil {
		return artifact.KeepModuleTarget(install, km.Module, km.Target)
	}
	return nil
}

// detect applies the target's detection rule to a source tree.
// Explicit sentinel files win; cmake targets otherwise match on their project name.
func detect(t *domain.Target, source string) bool {
	if source == "" {
		return false
	}
	for _, absent := range t.Detect.Absent {
		if exists(filepath.Join(source, absent)) {
			return false
		}
	}

	if len(t.Detect.Files) > 0 {
		for _, f := range t.Detect.Files {
			if !exists(filepath.Join(source, f)) {
				return false
			}
		}
		return true
	}

	if t.Driver != domain.DriverCMake {
		return false
	}
	want := t.Detect.Project
	if want == "" {
		want = t.Name
	}
	name, ok := cmakeProjectName(filepath.Join(source, t.SrcRoot, "CMakeLists.txt"))
	return ok && name == strings.ToLower(want)
}

// cmakeProjectName returns the normalized name of the first project() declaration.
func cmakeProjectName(path string) (string, bool) {
	// #nosec G304 -- path is the CMakeLists.txt of a source tree
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close() //nolint:errcheck // read-only

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		m := projectName.FindStringSubmatch(line)
		if m == nil {
			m = quotedProjectName.FindStringSubmatch(line)
		}
		if m != nil {
			return strings.ReplaceAll(strings.ToLower(m[1]), " ", "-"), true
		}
	}
	return "", false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
