// Package app implements the application layer for unibuild.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/unibuild/internal/adapters/detector"
	"go.trai.ch/unibuild/internal/adapters/linear"
	"go.trai.ch/unibuild/internal/adapters/telemetry"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/unibuild/internal/engine/orchestrator"
	"go.trai.ch/unibuild/internal/engine/source"
	"go.trai.ch/unibuild/internal/ui/output"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	settingsLoader ports.SettingsLoader
	catalogLoader  ports.CatalogLoader
	executor       ports.Executor
	fetcher        ports.Fetcher
	archiver       ports.Archiver
	vcs            ports.VCS
	hasher         ports.Hasher
	logger         ports.Logger
	receipts       ports.ReceiptStore

	stdout io.Writer
	stderr io.Writer
	native domain.Arch
}

// New creates a new App instance.
func New(
	settingsLoader ports.SettingsLoader,
	catalogLoader ports.CatalogLoader,
	executor ports.Executor,
	fetcher ports.Fetcher,
	archiver ports.Archiver,
	vcs ports.VCS,
	hasher ports.Hasher,
	log ports.Logger,
	receipts ports.ReceiptStore,
) *App {
	return &App{
		settingsLoader: settingsLoader,
		catalogLoader:  catalogLoader,
		executor:       executor,
		fetcher:        fetcher,
		archiver:       archiver,
		vcs:            vcs,
		hasher:         hasher,
		logger:         log,
		receipts:       receipts,
		stdout:         os.Stdout,
		stderr:         os.Stderr,
	}
}

// WithOutput redirects the renderer output.
// This is primarily used for testing.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithNativeArch overrides the architecture of the running machine.
func (a *App) WithNativeArch(arch domain.Arch) *App {
	a.native = arch
	return a
}

// BuildOptions are the command-line overrides of a build.
// Zero values keep the value from the settings.
type BuildOptions struct {
	Target string
	Source string

	Xcode      bool
	SourcePath string
	BuildPath  string
	OutputPath string

	SDKPathX64   string
	SDKPathARM   string
	OSVersionX64 string
	OSVersionARM string
	DisableX64   bool
	DisableARM   bool

	Jobs       int
	Verbose    bool
	OutputMode string
}

func (o BuildOptions) apply(s *domain.Settings) error {
	paths := []struct {
		flag string
		dst  *string
	}{
		{o.SourcePath, &s.SourcePath},
		{o.BuildPath, &s.BuildPath},
		{o.OutputPath, &s.OutputPath},
		{o.SDKPathX64, &s.X86_64.SDKPath},
		{o.SDKPathARM, &s.ARM64.SDKPath},
	}
	for _, p := range paths {
		if p.flag == "" {
			continue
		}
		abs, err := filepath.Abs(p.flag)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to resolve path"), "path", p.flag)
		}
		*p.dst = abs
	}

	if o.OSVersionX64 != "" {
		s.X86_64.OSVersion = o.OSVersionX64
	}
	if o.OSVersionARM != "" {
		s.ARM64.OSVersion = o.OSVersionARM
	}
	s.X86_64.Disabled = s.X86_64.Disabled || o.DisableX64
	s.ARM64.Disabled = s.ARM64.Disabled || o.DisableARM
	s.Xcode = s.Xcode || o.Xcode
	s.Verbose = s.Verbose || o.Verbose
	if o.Jobs > 0 {
		s.Jobs = o.Jobs
	}
	return nil
}

// Build runs the requested target with the renderer attached.
func (a *App) Build(ctx context.Context, opts BuildOptions) error {
	// 1. Load settings and the catalog
	settings, catalog, err := a.load()
	if err != nil {
		return err
	}
	if err := opts.apply(settings); err != nil {
		return err
	}

	// 2. Initialize Renderer
	mode := detector.ResolveMode(detector.DetectEnvironment(), opts.OutputMode)
	profile := output.ColorProfileANSI
	if mode == detector.ModeInteractive {
		profile = output.ColorProfile
	}
	renderer := linear.NewRenderer(a.stdout, a.stderr, linear.WithColorProfile(profile))

	// 3. Initialize Telemetry
	// Spans reach the renderer through the bridge; tool output through the tracer.
	setupOTel(telemetry.NewBridge(renderer))
	tracer := telemetry.NewOTelTracer("unibuild").WithRenderer(renderer)
	defer func() {
		_ = tracer.Shutdown(ctx)
	}()

	// 4. Initialize Orchestrator
	sources := source.New(a.executor, a.fetcher, a.archiver, a.vcs, a.logger)
	orch := orchestrator.New(a.executor, sources, a.vcs, a.hasher, a.logger, tracer, a.receipts)
	if a.native != "" {
		orch.WithNativeArch(a.native)
	}

	// 5. Run Renderer and Orchestrator concurrently
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = renderer.Stop()
		}()

		req := orchestrator.Request{Target: opts.Target, Source: opts.Source, Settings: settings}
		if err := orch.Run(ctx, catalog, req); err != nil {
			return errors.Join(domain.ErrBuildExecutionFailed, err)
		}
		return nil
	})

	return g.Wait()
}

// List writes the catalog as a table of name, driver and destination.
func (a *App) List(w io.Writer) error {
	_, catalog, err := a.load()
	if err != nil {
		return err
	}

	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(output.ColorProfile()))
	header := renderer.NewStyle().Bold(true)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("NAME", "DRIVER", "DESTINATION").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return renderer.NewStyle()
		})
	for _, target := range catalog.Targets() {
		dest := string(target.Destination)
		if target.Driver.Special() {
			dest = "-"
		}
		t.Row(target.Name, string(target.Driver), dest)
	}

	_, err = fmt.Fprintln(w, t.String())
	return err
}

func (a *App) load() (*domain.Settings, *domain.Catalog, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to get working directory")
	}

	settings, err := a.settingsLoader.Load(cwd)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to load settings")
	}
	if settings.LogFormat == "json" {
		if l, ok := a.logger.(interface{ SetJSON(bool) }); ok {
			l.SetJSON(true)
		}
	}

	catalog, err := a.catalogLoader.Load(settings.Root, settings.Catalog)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to load target catalog")
	}
	return settings, catalog, nil
}

// setupOTel configures the OpenTelemetry SDK with the renderer bridge.
func setupOTel(bridge *telemetry.Bridge) {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bridge),
	)
	otel.SetTracerProvider(tp)
}
