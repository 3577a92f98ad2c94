package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/unibuild/internal/core/ports/mocks"
	"go.trai.ch/unibuild/internal/engine/orchestrator"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

var machO = []byte{0xcf, 0xfa, 0xed, 0xfe, 0x07, 0x00, 0x00, 0x01}

func TestRun_TwoArchitectures(t *testing.T) {
	f := newFixture(t)
	f.receipts.EXPECT().Put(f.root, gomock.Any()).DoAndReturn(func(_ string, r domain.BuildReceipt) error {
		f.receipt = r
		return nil
	})

	err := f.run(orchestrator.Request{Target: "HELLO"})
	require.NoError(t, err)

	base := filepath.Join(f.root, "build", "hello", "make")
	for _, arch := range []string{"arm64", "x86_64"} {
		install := filepath.Join(base, "install_"+arch)
		assert.Equal(t, string(machO)+arch, readFile(t, filepath.Join(install, "bin", "hello")))
		assert.Equal(t, "!<arch>\n"+arch, readFile(t, filepath.Join(install, "lib", "libhello.a")))
	}

	dst := filepath.Join(f.root, "deps", "hello")
	assert.Equal(t, string(machO)+"arm64|"+string(machO)+"x86_64", readFile(t, filepath.Join(dst, "bin", "hello")))
	assert.Equal(t, "!<arch>\narm64|!<arch>\nx86_64", readFile(t, filepath.Join(dst, "lib", "libhello.a")))
	assert.Equal(t, "int hello(void);\n", readFile(t, filepath.Join(dst, "include", "hello.h")))
	assert.NoFileExists(t, filepath.Join(dst, "lib", "libhello.la"))

	link, err := os.Readlink(filepath.Join(dst, "bin", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello", link)

	var names []string
	require.NoError(t, filepath.WalkDir(dst, func(_ string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		names = append(names, d.Name())
		return nil
	}))
	for _, name := range names {
		assert.False(t, strings.HasSuffix(name, "_arm64") || strings.HasSuffix(name, "_x86_64"),
			"unexpected per-architecture entry %s", name)
	}

	assert.Equal(t, []string{
		"hello",
		"hello:source",
		"download-cmake",
		"download-cmake:source",
		"download-cmake:configure",
		"download-cmake:build",
		"download-cmake:install",
		"hello:arm64:configure",
		"hello:arm64:build",
		"hello:arm64:install",
		"hello:x86_64:configure",
		"hello:x86_64:build",
		"hello:x86_64:install",
		"hello:merge",
	}, f.tracer.spans)
	assert.Equal(t, []string{"hello:arm64", "hello:x86_64", "hello:merge"}, f.tracer.plan)
	assert.Empty(t, f.tracer.failed)

	assert.Contains(t, f.exec.lines(), "codesign --sign - "+filepath.Join(dst, "bin", "hello"))
	assert.Contains(t, f.exec.lines(), "cmake --version")

	configure := f.exec.find(t, "cmake", filepath.Join(base, "build_x86_64"))
	assert.Contains(t, configure.Args, "-DCMAKE_SYSTEM_PROCESSOR=x86_64")
	assert.Contains(t, configure.Args, "-DCMAKE_INSTALL_PREFIX="+filepath.Join(base, "install_x86_64"))
	native := f.exec.find(t, "cmake", filepath.Join(base, "build_arm64"))
	assert.NotContains(t, native.Args, "-DCMAKE_SYSTEM_NAME=Darwin")

	assert.Equal(t, "hello", f.receipt.Target)
	assert.Equal(t, []domain.Arch{domain.ArchARM64, domain.ArchX86_64}, f.receipt.Archs)
	assert.Equal(t, dst, f.receipt.InstallPath)
	assert.False(t, f.receipt.Timestamp.IsZero())
	assert.Equal(t, []string{filepath.Join(f.root, "source", "hello")}, f.sources.acquired)
}

func TestRun_DisabledArchitecture(t *testing.T) {
	f := newFixture(t)
	f.settings.X86_64.Disabled = true
	f.receipts.EXPECT().Put(f.root, gomock.Any()).Return(nil)

	require.NoError(t, f.run(orchestrator.Request{Target: "hello"}))

	assert.Equal(t, []string{"hello:arm64", "hello:merge"}, f.tracer.plan)
	assert.Equal(t, string(machO)+"arm64", readFile(t, filepath.Join(f.root, "deps", "hello", "bin", "hello")))
	assert.NoDirExists(t, filepath.Join(f.root, "build", "hello", "make", "build_x86_64"))
}

func TestRun_NoPlatforms(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*fixture)
		expectedErr error
	}{
		{
			name: "all architectures disabled",
			setup: func(f *fixture) {
				f.settings.X86_64.Disabled = true
				f.settings.ARM64.Disabled = true
			},
			expectedErr: domain.ErrNoPlatforms,
		},
		{
			name: "target supports none of the enabled architectures",
			setup: func(f *fixture) {
				f.settings.X86_64.Disabled = true
				hello, err := f.catalog.Lookup("hello")
				require.NoError(f.t, err)
				hello.Unsupported = []domain.Arch{domain.ArchARM64}
			},
			expectedErr: domain.ErrNoPlatforms,
		},
		{
			name: "invalid os version",
			setup: func(f *fixture) {
				f.settings.ARM64.OSVersion = "eleven"
			},
			expectedErr: domain.ErrInvalidVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			err := f.run(orchestrator.Request{Target: "hello"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectedErr))
		})
	}
}

func TestRun_ResolveErrors(t *testing.T) {
	f := newFixture(t)

	err := f.run(orchestrator.Request{Target: "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTargetNotFound))

	err = f.run(orchestrator.Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTargetNotFound))

	err = f.run(orchestrator.Request{Source: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTargetNotDetected))
	assert.Empty(t, f.exec.commands)
}

func TestRun_FailsBeforeTracing(t *testing.T) {
	f := newFixture(t)
	f.settings.X86_64.Disabled = true
	f.settings.ARM64.Disabled = true

	// No plan and no span may be emitted for a run that cannot start.
	tracer := mocks.NewMockTracer(gomock.NewController(t))
	o := orchestrator.New(f.exec, f.sources, f.vcs, contentHasher{}, f.logger, tracer, f.receipts)

	err := o.Run(context.Background(), f.catalog, orchestrator.Request{Target: "hello", Settings: f.settings})
	require.ErrorIs(t, err, domain.ErrNoPlatforms)

	f.settings.ARM64.Disabled = false
	err = o.Run(context.Background(), f.catalog, orchestrator.Request{Target: "missing", Settings: f.settings})
	require.ErrorIs(t, err, domain.ErrTargetNotFound)
}

func TestRun_DetectsExternalSource(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.catalog.Add(&domain.Target{
		Name:        "zstd",
		Driver:      domain.DriverCMake,
		Destination: domain.DestinationDeps,
		SrcRoot:     "build/cmake",
		Detect:      domain.DetectRule{Files: []string{"lib/libzstd.pc.in"}},
	}))
	f.settings.X86_64.Disabled = true
	f.receipts.EXPECT().Put(f.root, gomock.Any()).DoAndReturn(func(_ string, r domain.BuildReceipt) error {
		f.receipt = r
		return nil
	})

	src := filepath.Join(t.TempDir(), "zstd-1.5.0")
	writeFile(t, filepath.Join(src, "lib", "libzstd.pc.in"), "")

	require.NoError(t, f.run(orchestrator.Request{Source: src}))

	assert.Equal(t, []string{"zstd"}, f.tracer.plan)
	assert.Equal(t, []string{"zstd", "zstd:detect", "zstd:source"}, f.tracer.spans[:3])
	assert.Equal(t, src, f.sources.acquired[0])

	configure := f.exec.find(t, "cmake", filepath.Join(f.root, "build", "zstd", "make"))
	assert.Equal(t, filepath.Join(src, "build", "cmake"), configure.Args[len(configure.Args)-1])
	assert.Equal(t, "zstd", f.receipt.Target)
	assert.Equal(t, []domain.Arch{domain.ArchARM64}, f.receipt.Archs)
}

func TestRun_PassFailure(t *testing.T) {
	f := newFixture(t)
	f.exec.fail = func(cmd domain.Command) error {
		if cmd.Name == "gmake" && cmd.Args[0] == "-j" && filepath.Base(cmd.Dir) == "build_x86_64" {
			return zerr.With(zerr.Wrap(domain.ErrCommandFailed, cmd.String()), "exit_code", 2)
		}
		return nil
	}

	err := f.run(orchestrator.Request{Target: "hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCommandFailed))

	assert.Equal(t, []string{"hello:x86_64:build", "hello"}, f.tracer.failed)
	assert.NotContains(t, f.tracer.spans, "hello:merge")
	assert.NoDirExists(t, filepath.Join(f.root, "deps", "hello"))
}

func TestRun_Jobs(t *testing.T) {
	tests := []struct {
		name     string
		jobs     int
		ncpu     string
		expected string
	}{
		{name: "from settings", jobs: 3, ncpu: "12\n", expected: "3"},
		{name: "from sysctl", ncpu: "12\n", expected: "12"},
		{name: "sysctl unavailable", expected: strconv.Itoa(runtime.NumCPU())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.settings.Jobs = tt.jobs
			f.settings.X86_64.Disabled = true
			f.exec.ncpu = tt.ncpu
			f.receipts.EXPECT().Put(f.root, gomock.Any()).Return(nil)

			require.NoError(t, f.run(orchestrator.Request{Target: "hello"}))

			build := f.exec.find(t, "gmake", filepath.Join(f.root, "build", "hello", "make", "build_arm64"))
			assert.Equal(t, []string{"-j", tt.expected}, build.Args)
		})
	}
}

func TestRun_SDKDefault(t *testing.T) {
	f := newFixture(t)
	f.settings.X86_64.Disabled = true
	f.settings.ARM64.OSVersion = "11.3"
	sdk := filepath.Join(f.root, "sdk", "MacOSX11.3.sdk")
	require.NoError(t, os.MkdirAll(sdk, domain.DirPerm))
	f.receipts.EXPECT().Put(f.root, gomock.Any()).Return(nil)

	require.NoError(t, f.run(orchestrator.Request{Target: "hello"}))

	configure := f.exec.find(t, "cmake", filepath.Join(f.root, "build", "hello", "make", "build_arm64"))
	assert.Contains(t, configure.Args, "-DCMAKE_OSX_SYSROOT="+sdk)
	assert.Contains(t, configure.Args, "-DCMAKE_OSX_DEPLOYMENT_TARGET=11.3")
}

func TestRun_Xcode(t *testing.T) {
	f := newFixture(t)
	f.settings.Xcode = true
	f.receipts.EXPECT().Put(f.root, gomock.Any()).Return(nil)
	writeFile(t, filepath.Join(f.root, "deps", "hello", "keep"), "x")

	require.NoError(t, f.run(orchestrator.Request{Target: "hello"}))

	assert.Equal(t, []string{"hello"}, f.tracer.plan)
	assert.FileExists(t, filepath.Join(f.root, "deps", "hello", "keep"))

	build := filepath.Join(f.root, "build", "hello", "xcode")
	configure := f.exec.find(t, "cmake", build)
	assert.Contains(t, configure.Args, "-GXcode")
	assert.Contains(t, f.exec.lines(), "cmake --open .")
	assert.NotContains(t, f.tracer.spans, "hello:merge")
}

func TestRun_ReceiptFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	f.settings.X86_64.Disabled = true
	f.receipts.EXPECT().Put(f.root, gomock.Any()).Return(domain.ErrStoreWriteFailed)
	f.logger.EXPECT().Warn("failed to store build receipt: " + domain.ErrStoreWriteFailed.Error())

	require.NoError(t, f.run(orchestrator.Request{Target: "hello"}))
}

// Fixture.

type fixture struct {
	t        *testing.T
	root     string
	settings *domain.Settings
	catalog  *domain.Catalog
	exec     *fakeExecutor
	sources  *fakeSources
	tracer   *recordingTracer
	logger   *mocks.MockLogger
	receipts *mocks.MockReceiptStore
	vcs      *mocks.MockVCS
	receipt  domain.BuildReceipt
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	root := t.TempDir()

	catalog := domain.NewCatalog()
	require.NoError(t, catalog.Add(&domain.Target{
		Name:   domain.DownloadCMakeTarget,
		Driver: domain.DriverDownloadCMake,
	}))
	require.NoError(t, catalog.Add(&domain.Target{
		Name:          "hello",
		Driver:        domain.DriverCMake,
		Destination:   domain.DestinationDeps,
		MultiPlatform: true,
		Source:        domain.Source{Git: &domain.GitSource{URL: "https://example.com/hello.git"}},
	}))
	writeFile(t, filepath.Join(root, "source", "hello", "CMakeLists.txt"), "project(hello)\n")

	return &fixture{
		t:        t,
		root:     root,
		settings: &domain.Settings{Root: root, Jobs: 2},
		catalog:  catalog,
		exec:     &fakeExecutor{t: t, prefixes: make(map[string]string)},
		sources:  &fakeSources{},
		tracer:   &recordingTracer{},
		logger:   mocks.NewMockLogger(ctrl),
		receipts: mocks.NewMockReceiptStore(ctrl),
		vcs:      mocks.NewMockVCS(ctrl),
	}
}

func (f *fixture) run(req orchestrator.Request) error {
	o := orchestrator.New(f.exec, f.sources, f.vcs, contentHasher{}, f.logger, f.tracer, f.receipts).
		WithNativeArch(domain.ArchARM64)
	req.Settings = f.settings
	return o.Run(context.Background(), f.catalog, req)
}

// fakeExecutor simulates cmake, gmake install and lipo on the file system.
type fakeExecutor struct {
	t        *testing.T
	prefixes map[string]string
	commands []domain.Command
	fail     func(domain.Command) error
	ncpu     string
}

func (e *fakeExecutor) Run(_ context.Context, cmd domain.Command) error {
	e.commands = append(e.commands, cmd)
	if e.fail != nil {
		if err := e.fail(cmd); err != nil {
			return err
		}
	}

	switch cmd.Name {
	case "cmake":
		for _, a := range cmd.Args {
			if v, ok := strings.CutPrefix(a, "-DCMAKE_INSTALL_PREFIX="); ok {
				e.prefixes[cmd.Dir] = v
			}
		}
	case "gmake":
		if len(cmd.Args) > 0 && cmd.Args[0] == "install" {
			e.install(cmd.Dir)
		}
	case "lipo":
		e.lipo(cmd.Args)
	}
	return nil
}

func (e *fakeExecutor) Output(_ context.Context, cmd domain.Command) ([]byte, error) {
	e.commands = append(e.commands, cmd)
	if cmd.Name == "sysctl" && e.ncpu != "" {
		return []byte(e.ncpu), nil
	}
	return nil, zerr.With(zerr.Wrap(domain.ErrCommandFailed, cmd.String()), "exit_code", 1)
}

func (e *fakeExecutor) install(buildDir string) {
	install, ok := e.prefixes[buildDir]
	require.True(e.t, ok, "install before configure in %s", buildDir)
	arch := strings.TrimPrefix(filepath.Base(buildDir), "build_")

	writeFile(e.t, filepath.Join(install, "bin", "hello"), string(machO)+arch)
	require.NoError(e.t, os.Symlink("hello", filepath.Join(install, "bin", "hi")))
	writeFile(e.t, filepath.Join(install, "lib", "libhello.a"), "!<arch>\n"+arch)
	writeFile(e.t, filepath.Join(install, "lib", "libhello.la"), "# libtool\n")
	writeFile(e.t, filepath.Join(install, "lib", "pkgconfig", "hello.pc"), "prefix="+install+"\nLibs: -lhello\n")
	writeFile(e.t, filepath.Join(install, "include", "hello.h"), "int hello(void);\n")
}

func (e *fakeExecutor) lipo(args []string) {
	i := slices.Index(args, "-create")
	require.GreaterOrEqual(e.t, i, 0)
	contents := make([]string, i)
	for j, p := range args[:i] {
		contents[j] = readFile(e.t, p)
	}
	writeFile(e.t, args[i+2], strings.Join(contents, "|"))
}

func (e *fakeExecutor) lines() []string {
	out := make([]string, len(e.commands))
	for i, c := range e.commands {
		out[i] = c.String()
	}
	return out
}

func (e *fakeExecutor) find(t *testing.T, name, dir string) domain.Command {
	t.Helper()
	for _, c := range e.commands {
		if c.Name == name && c.Dir == dir {
			return c
		}
	}
	require.Failf(t, "command not run", "%s in %s", name, dir)
	return domain.Command{}
}

type fakeSources struct {
	acquired []string
}

func (s *fakeSources) Acquire(_ context.Context, st *domain.BuildState, _ domain.Source, _ io.Writer) error {
	s.acquired = append(s.acquired, st.Source)
	return nil
}

func (s *fakeSources) Download(context.Context, *domain.BuildState, domain.SourcePackage, io.Writer) error {
	return domain.ErrDownloadFailed
}

func (s *fakeSources) RunPkgConfig(context.Context, *domain.BuildState, ...string) (string, error) {
	return "", domain.ErrPkgConfigFailed
}

type contentHasher struct{}

func (contentHasher) FileDigest(path string) (domain.FileDigest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FileDigest{}, err
	}
	return domain.FileDigest{Sum: xxhash.Sum64(data), Size: int64(len(data))}, nil
}

// recordingTracer keeps the names of started and failed spans in order.
type recordingTracer struct {
	mu     sync.Mutex
	spans  []string
	failed []string
	plan   []string
}

func (r *recordingTracer) Start(ctx context.Context, name string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, name)
	return ctx, &recordingSpan{tracer: r, name: name}
}

func (r *recordingTracer) EmitPlan(_ context.Context, names, _ []string) {
	r.plan = names
}

type recordingSpan struct {
	tracer *recordingTracer
	name   string
}

func (s *recordingSpan) Write(p []byte) (int, error) { return len(p), nil }
func (s *recordingSpan) End()                        {}
func (s *recordingSpan) SetAttribute(string, any)    {}

func (s *recordingSpan) RecordError(error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.failed = append(s.tracer.failed, s.name)
}

// Helpers.

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
