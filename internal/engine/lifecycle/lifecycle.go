// Package lifecycle drives a target through its phases with the build-tool
// family selected by its driver.
package lifecycle

import (
	"context"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/zerr"
)

// SourceAcquirer fetches or checks out the target's source tree.
type SourceAcquirer interface {
	AcquireSource(ctx context.Context, st *domain.BuildState, out io.Writer) error
}

// Detector recognizes the target in an external source tree. It must not modify anything.
type Detector interface {
	Detect(st *domain.BuildState) bool
}

// Configurer prepares the build directory.
type Configurer interface {
	Configure(ctx context.Context, st *domain.BuildState, out io.Writer) error
}

// Builder runs the build tool.
type Builder interface {
	Build(ctx context.Context, st *domain.BuildState, out io.Writer) error
}

// PostBuilder installs the build results.
type PostBuilder interface {
	PostBuild(ctx context.Context, st *domain.BuildState, out io.Writer) error
}

// Sources is the acquisition pipeline used by the drivers.
type Sources interface {
	Acquire(ctx context.Context, st *domain.BuildState, src domain.Source, out io.Writer) error
	Download(ctx context.Context, st *domain.BuildState, pkg domain.SourcePackage, out io.Writer) error
	RunPkgConfig(ctx context.Context, st *domain.BuildState, args ...string) (string, error)
}

// Toolbox holds the collaborators the drivers run tools through.
type Toolbox struct {
	Executor ports.Executor
	Sources  Sources
	VCS      ports.VCS
	Logger   ports.Logger
	// Native is the architecture of the running machine.
	Native domain.Arch
	// LookupEnv reads the inherited environment. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func (tb Toolbox) lookupEnv(key string) (string, bool) {
	if tb.LookupEnv == nil {
		return os.LookupEnv(key)
	}
	return tb.LookupEnv(key)
}

// Instance is one pass of a target: the immutable specification plus the
// options and environment that pass may change.
type Instance struct {
	Target      *domain.Target
	Options     domain.Options
	Environment map[string]string

	tb      Toolbox
	machine Machine
	impl    any
}

// New creates an instance of t bound to the driver family of t.Driver.
func New(t *domain.Target, tb Toolbox) (*Instance, error) {
	in := &Instance{
		Target:      t,
		Options:     t.Options.Clone(),
		Environment: maps.Clone(t.Environment),
		tb:          tb,
	}
	if in.Environment == nil {
		in.Environment = make(map[string]string)
	}
	if err := in.bind(); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Instance) bind() error {
	switch in.Target.Driver {
	case domain.DriverMake:
		in.impl = &makeDriver{common{in}}
	case domain.DriverConfigureMake:
		in.impl = &configureMakeDriver{makeDriver{common{in}}}
	case domain.DriverCMake:
		in.impl = &cmakeDriver{common{in}}
	case domain.DriverCleanAll:
		in.impl = &cleanDriver{in: in}
	case domain.DriverCleanDeps:
		in.impl = &cleanDriver{in: in, depsOnly: true}
	case domain.DriverDownloadCMake:
		in.impl = &downloadCMakeDriver{in}
	case domain.DriverTestDeps:
		in.impl = &testDepsDriver{in}
	default:
		return zerr.With(zerr.Wrap(domain.ErrInvalidTarget, "unknown driver"), "driver", string(in.Target.Driver))
	}
	return nil
}

// Clone returns an independent copy for another pass. The phase is kept.
func (in *Instance) Clone() *Instance {
	c := &Instance{
		Target:      in.Target,
		Options:     in.Options.Clone(),
		Environment: maps.Clone(in.Environment),
		tb:          in.tb,
		machine:     in.machine,
	}
	_ = c.bind()
	return c
}

// Phase returns the last phase entered.
func (in *Instance) Phase() domain.Phase {
	return in.machine.Phase()
}

// Step enters phase and runs the driver's hook for it.
// Drivers without the capability complete the phase without doing anything.
func (in *Instance) Step(ctx context.Context, st *domain.BuildState, phase domain.Phase, out io.Writer) error {
	if err := in.machine.Advance(phase); err != nil {
		return zerr.With(err, "target", in.Target.Name)
	}

	var err error
	switch phase {
	case domain.PhaseDetect:
		if d, ok := in.impl.(Detector); ok && !d.Detect(st) {
			err = zerr.With(zerr.Wrap(domain.ErrTargetNotDetected, in.Target.Name), "source", st.Source)
		}
	case domain.PhaseSourceAcquired:
		if a, ok := in.impl.(SourceAcquirer); ok {
			err = a.AcquireSource(ctx, st, out)
		}
	case domain.PhaseConfigured:
		if c, ok := in.impl.(Configurer); ok {
			err = c.Configure(ctx, st, out)
		}
	case domain.PhaseBuilt:
		if b, ok := in.impl.(Builder); ok {
			err = b.Build(ctx, st, out)
		}
	case domain.PhasePostBuilt:
		if p, ok := in.impl.(PostBuilder); ok {
			err = p.PostBuild(ctx, st, out)
		}
	}
	if err != nil {
		return zerr.With(zerr.With(zerr.Wrap(err, "phase failed"), "phase", phase.String()), "target", in.Target.Name)
	}
	return nil
}

// DetectTarget returns the single catalog target that recognizes st.Source.
func DetectTarget(catalog *domain.Catalog, st *domain.BuildState) (*domain.Target, error) {
	var matches []*domain.Target
	for _, t := range catalog.Targets() {
		in, err := New(t, Toolbox{})
		if err != nil {
			return nil, err
		}
		if d, ok := in.impl.(Detector); ok && d.Detect(st) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return nil, zerr.With(zerr.Wrap(domain.ErrTargetNotDetected, "no target matches"), "source", st.Source)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, t := range matches {
			names[i] = t.Name
		}
		err := zerr.With(zerr.Wrap(domain.ErrTargetAmbiguous, "pass --target to choose"), "source", st.Source)
		return nil, zerr.With(err, "targets", strings.Join(names, ", "))
	}
}

// env renders the instance environment as sorted KEY=VALUE entries.
func (in *Instance) env() []string {
	keys := slices.Sorted(maps.Keys(in.Environment))
	env := make([]string, len(keys))
	for i, k := range keys {
		env[i] = k + "=" + in.Environment[k]
	}
	return env
}

// appendEnv appends value to the variable, starting from the inherited value.
func (in *Instance) appendEnv(key, value string) {
	current, ok := in.Environment[key]
	if !ok {
		current, ok = in.tb.lookupEnv(key)
	}
	if ok && current != "" {
		value = current + " " + value
	}
	in.Environment[key] = value
}

func (in *Instance) run(ctx context.Context, dir string, out io.Writer, name string, args ...string) error {
	return in.tb.Executor.Run(ctx, domain.Command{
		Name:   name,
		Args:   args,
		Dir:    dir,
		Env:    in.env(),
		Stdout: out,
	})
}
