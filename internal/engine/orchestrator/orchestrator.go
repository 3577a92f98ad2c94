// Package orchestrator runs a requested target end to end: it resolves the
// target, bootstraps cmake, builds one pass per architecture and merges the
// per-architecture install trees.
package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/unibuild/internal/engine/lifecycle"
	"go.trai.ch/unibuild/internal/engine/merge"
	"go.trai.ch/unibuild/internal/engine/prefix"
	"go.trai.ch/zerr"
)

// Request selects what to build.
type Request struct {
	// Target is a catalog name. Matching ignores case.
	Target string
	// Source is an external source tree. Without Target, the target is detected from it.
	Source   string
	Settings *domain.Settings
}

// Orchestrator runs targets through their lifecycle.
type Orchestrator struct {
	executor ports.Executor
	sources  lifecycle.Sources
	vcs      ports.VCS
	hasher   ports.Hasher
	logger   ports.Logger
	tracer   ports.Tracer
	receipts ports.ReceiptStore

	native domain.Arch
	now    func() time.Time
}

// New creates a new Orchestrator with the given dependencies.
func New(
	executor ports.Executor,
	sources lifecycle.Sources,
	vcs ports.VCS,
	hasher ports.Hasher,
	logger ports.Logger,
	tracer ports.Tracer,
	receipts ports.ReceiptStore,
) *Orchestrator {
	return &Orchestrator{
		executor: executor,
		sources:  sources,
		vcs:      vcs,
		hasher:   hasher,
		logger:   logger,
		tracer:   tracer,
		receipts: receipts,
		native:   domain.NativeArch(),
		now:      time.Now,
	}
}

// WithNativeArch overrides the architecture of the running machine.
func (o *Orchestrator) WithNativeArch(arch domain.Arch) *Orchestrator {
	o.native = arch
	return o
}

// Run builds the requested target and records a receipt on success.
func (o *Orchestrator) Run(ctx context.Context, catalog *domain.Catalog, req Request) error {
	settings := req.Settings
	if settings == nil {
		return zerr.Wrap(domain.ErrConfigReadFailed, "settings are required")
	}

	st, err := o.newState(settings)
	if err != nil {
		return err
	}

	t, err := resolve(catalog, st, req)
	if err != nil {
		return err
	}

	st.BuildPath = settings.BuildPath
	if st.BuildPath == "" {
		st.BuildPath = st.Layout.BuildDir(t.Name, st.Xcode)
	}
	st.Jobs = o.jobs(ctx, settings)

	o.tracer.EmitPlan(ctx, plan(st, t), []string{t.Name})

	archs, err := o.runTarget(ctx, catalog, st, t, settings)
	if err != nil {
		return err
	}

	receipt := domain.BuildReceipt{
		Target:      t.Name,
		Archs:       archs,
		InstallPath: st.InstallPath,
		Timestamp:   o.now(),
	}
	if err := o.receipts.Put(st.Layout.Root, receipt); err != nil {
		o.logger.Warn("failed to store build receipt: " + err.Error())
	}
	return nil
}

func (o *Orchestrator) newState(settings *domain.Settings) (*domain.BuildState, error) {
	layout := domain.NewLayout(settings.Root)
	if settings.SourcePath != "" {
		layout.SourceRoot = settings.SourcePath
	}
	if settings.OutputPath != "" {
		layout.OutputRoot = settings.OutputPath
	}

	platforms, err := o.platforms(settings, layout)
	if err != nil {
		return nil, err
	}

	st := domain.NewBuildState(layout)
	st.Platforms = platforms
	st.Platform = platforms[0]
	st.Xcode = settings.Xcode
	st.Verbose = settings.Verbose
	return st, nil
}

// platforms returns one platform per enabled architecture, native first.
func (o *Orchestrator) platforms(settings *domain.Settings, layout domain.Layout) ([]domain.Platform, error) {
	var platforms []domain.Platform
	for _, arch := range []domain.Arch{domain.ArchX86_64, domain.ArchARM64} {
		as := settings.Arch(arch)
		if as.Disabled {
			continue
		}

		osVersion := domain.DefaultOSVersion(arch)
		if as.OSVersion != "" {
			v, err := domain.ParseVersion(as.OSVersion)
			if err != nil {
				return nil, zerr.With(err, "arch", string(arch))
			}
			osVersion = v
		}

		sdk := as.SDKPath
		if sdk == "" {
			candidate := filepath.Join(layout.SDK(), "MacOSX"+osVersion.String()+".sdk")
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				sdk = candidate
			}
		}

		platforms = append(platforms, domain.NewPlatform(arch, osVersion, sdk, layout.Prefix()))
	}

	if len(platforms) == 0 {
		return nil, zerr.Wrap(domain.ErrNoPlatforms, "every architecture is disabled")
	}
	return domain.OrderNativeFirst(platforms, o.native), nil
}

// resolve finds the target by name or detects it from the external source tree.
func resolve(catalog *domain.Catalog, st *domain.BuildState, req Request) (*domain.Target, error) {
	if req.Source != "" {
		src, err := filepath.Abs(req.Source)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to resolve source path"), "path", req.Source)
		}
		st.Source = src
		st.ExternalSource = true
	}

	switch {
	case req.Target != "":
		t, err := catalog.Lookup(req.Target)
		if err != nil {
			return nil, err
		}
		if !st.ExternalSource {
			st.Source = st.Layout.TargetSource(t.Name)
		}
		return t, nil
	case st.ExternalSource:
		return lifecycle.DetectTarget(catalog, st)
	default:
		return nil, zerr.Wrap(domain.ErrTargetNotFound, "either a target name or a source path is required")
	}
}

// jobs returns the configured job count, falling back to the number of CPUs.
func (o *Orchestrator) jobs(ctx context.Context, settings *domain.Settings) int {
	if settings.Jobs > 0 {
		return settings.Jobs
	}
	out, err := o.executor.Output(ctx, domain.Command{Name: "sysctl", Args: []string{"-n", "hw.ncpu"}})
	if err == nil {
		if n, convErr := strconv.Atoi(strings.TrimSpace(string(out))); convErr == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// plan lists the passes of t in execution order.
func plan(st *domain.BuildState, t *domain.Target) []string {
	if !fansOut(st, t) {
		return []string{t.Name}
	}
	var names []string
	for _, p := range st.Platforms {
		if t.Supports(p.Arch) {
			names = append(names, t.Name+":"+string(p.Arch))
		}
	}
	return append(names, t.Name+":merge")
}

func fansOut(st *domain.BuildState, t *domain.Target) bool {
	return t.MultiPlatform && !st.Xcode
}

func (o *Orchestrator) toolbox() lifecycle.Toolbox {
	return lifecycle.Toolbox{
		Executor: o.executor,
		Sources:  o.sources,
		VCS:      o.vcs,
		Logger:   o.logger,
		Native:   o.native,
	}
}

// runTarget acquires the source of t, bootstraps cmake and runs the build passes.
// It returns the architectures that were built.
func (o *Orchestrator) runTarget(
	ctx context.Context,
	catalog *domain.Catalog,
	st *domain.BuildState,
	t *domain.Target,
	settings *domain.Settings,
) ([]domain.Arch, error) {
	ctx, span := o.tracer.Start(ctx, t.Name, ports.WithAttribute("driver", string(t.Driver)))
	defer span.End()

	archs, err := o.runPhases(ctx, catalog, st, t, settings)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return archs, nil
}

func (o *Orchestrator) runPhases(
	ctx context.Context,
	catalog *domain.Catalog,
	st *domain.BuildState,
	t *domain.Target,
	settings *domain.Settings,
) ([]domain.Arch, error) {
	in, err := lifecycle.New(t, o.toolbox())
	if err != nil {
		return nil, err
	}

	if st.ExternalSource {
		if err := o.step(ctx, st, in, t.Name, domain.PhaseDetect); err != nil {
			return nil, err
		}
	}
	if err := o.step(ctx, st, in, t.Name, domain.PhaseSourceAcquired); err != nil {
		return nil, err
	}

	st.InstallPath = st.Layout.InstallDir(t.Name, t.Destination)
	if !st.Xcode {
		if err := os.RemoveAll(st.InstallPath); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to remove install directory"), "path", st.InstallPath)
		}
	}

	if t.Driver != domain.DriverDownloadCMake {
		if err := o.bootstrap(ctx, catalog, st, settings); err != nil {
			return nil, err
		}
	}

	if err := prefix.Assemble(st.Layout); err != nil {
		return nil, err
	}

	if fansOut(st, t) {
		return o.fanOut(ctx, st, in, settings)
	}
	if err := o.passes(ctx, st, in, t.Name); err != nil {
		return nil, err
	}
	return []domain.Arch{st.Platform.Arch}, nil
}

// bootstrap makes sure cmake is available by running download-cmake with a fresh state.
func (o *Orchestrator) bootstrap(
	ctx context.Context,
	catalog *domain.Catalog,
	st *domain.BuildState,
	settings *domain.Settings,
) error {
	t, err := catalog.Lookup(domain.DownloadCMakeTarget)
	if err != nil {
		return err
	}

	nested := st.Fresh()
	nested.Source = nested.Layout.TargetSource(t.Name)
	nested.BuildPath = nested.Layout.BuildDir(t.Name, false)
	_, err = o.runTarget(ctx, catalog, nested, t, settings)
	return err
}

// fanOut builds one pass per supported platform and merges the install trees into st.InstallPath.
func (o *Orchestrator) fanOut(
	ctx context.Context,
	st *domain.BuildState,
	in *lifecycle.Instance,
	settings *domain.Settings,
) ([]domain.Arch, error) {
	t := in.Target
	baseBuild := st.BuildPath
	dst := st.InstallPath

	var installs []string
	var archs []domain.Arch
	for _, p := range st.Platforms {
		if !t.Supports(p.Arch) {
			continue
		}

		st.Platform = p
		st.BuildPath = filepath.Join(baseBuild, "build_"+string(p.Arch))
		st.InstallPath = filepath.Join(baseBuild, "install_"+string(p.Arch))
		if p.IsNative(o.native) {
			st.NativeBuildPath = st.BuildPath
		}

		if err := o.passes(ctx, st, in.Clone(), t.Name+":"+string(p.Arch)); err != nil {
			return nil, zerr.With(zerr.Wrap(err, string(p.Arch)+" build failed"), "arch", string(p.Arch))
		}
		installs = append(installs, st.InstallPath)
		archs = append(archs, p.Arch)
	}

	st.Platform = st.Platforms[0]
	st.BuildPath = baseBuild
	st.InstallPath = dst

	if len(installs) == 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrNoPlatforms, "target supports none of the enabled architectures"),
			"target", t.Name)
	}

	ctx, span := o.tracer.Start(ctx, t.Name+":merge")
	defer span.End()

	m := merge.New(o.executor, o.hasher, o.logger, settings.Merge.Divergent)
	if err := m.Merge(ctx, installs, dst, span); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := m.FillMissing(installs, dst); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return archs, nil
}

// passes runs configure, build and post-build.
func (o *Orchestrator) passes(ctx context.Context, st *domain.BuildState, in *lifecycle.Instance, label string) error {
	for _, phase := range []domain.Phase{domain.PhaseConfigured, domain.PhaseBuilt, domain.PhasePostBuilt} {
		if err := o.step(ctx, st, in, label, phase); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) step(
	ctx context.Context,
	st *domain.BuildState,
	in *lifecycle.Instance,
	label string,
	phase domain.Phase,
) error {
	ctx, span := o.tracer.Start(ctx, label+":"+phase.String())
	defer span.End()

	if err := in.Step(ctx, st, phase, span); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
