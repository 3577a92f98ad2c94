// Package config provides the target catalog loader for unibuild.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinCatalog []byte

// BuiltinSource is the name used for the embedded catalog in error metadata.
const BuiltinSource = "builtin"

// Loader implements ports.CatalogLoader on top of YAML files.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load returns the builtin catalog overlaid with the project catalog.
// A missing default targets.yaml is not an error; a missing explicit path is.
func (l *Loader) Load(root, path string) (*domain.Catalog, error) {
	catalog, err := parseCatalog(builtinCatalog, BuiltinSource)
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = domain.CatalogFileName
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	// #nosec G304 -- path is the project catalog chosen by the user
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return catalog, nil
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "path", path)
	}

	project, err := parseCatalog(data, path)
	if err != nil {
		return nil, err
	}

	for _, t := range project.Targets() {
		if _, lookupErr := catalog.Lookup(t.Name); lookupErr == nil {
			l.Logger.Info(fmt.Sprintf("%s overrides builtin target %s", filepath.Base(path), t.Name))
		}
		if err := catalog.Put(t); err != nil {
			return nil, zerr.With(err, "path", path)
		}
	}

	return catalog, nil
}

// Builtin returns the embedded catalog.
func Builtin() (*domain.Catalog, error) {
	return parseCatalog(builtinCatalog, BuiltinSource)
}

func parseCatalog(data []byte, source string) (*domain.Catalog, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, err.Error()), "path", source)
	}

	catalog := domain.NewCatalog()
	for i, dto := range file.Targets {
		if dto == nil {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidTarget, "empty target entry"),
				"index", i), "path", source)
		}
		t, err := buildTarget(dto)
		if err != nil {
			return nil, zerr.With(err, "path", source)
		}
		if err := catalog.Add(t); err != nil {
			return nil, zerr.With(err, "path", source)
		}
	}
	return catalog, nil
}

func buildTarget(dto *TargetDTO) (*domain.Target, error) {
	invalid := func(msg string) error {
		return zerr.With(zerr.Wrap(domain.ErrInvalidTarget, msg), "target", dto.Name)
	}

	if dto.Name == "" {
		return nil, invalid("target name is empty")
	}

	driver := domain.Driver(dto.Driver)
	if !driver.Valid() {
		return nil, zerr.With(invalid("unknown driver"), "driver", dto.Driver)
	}

	t := &domain.Target{
		Name:          dto.Name,
		Driver:        driver,
		Destination:   domain.DestinationDeps,
		Environment:   dto.Environment,
		SrcRoot:       dto.SrcRoot,
		MultiPlatform: !driver.Special(),
		Static:        dto.Static,
		Outputs:       dto.Outputs,
		ForceCross:    dto.ForceCross,
		Detect: domain.DetectRule{
			Files:   dto.Detect.Files,
			Absent:  dto.Detect.Absent,
			Project: dto.Detect.Project,
		},
	}
	if dto.MultiPlatform != nil {
		t.MultiPlatform = *dto.MultiPlatform
	}

	switch domain.Destination(dto.Destination) {
	case "", domain.DestinationDeps:
	case domain.DestinationOutput:
		t.Destination = domain.DestinationOutput
		if len(t.Outputs) == 0 && driver == domain.DriverCMake {
			t.Outputs = []string{t.Name + ".app"}
		}
	default:
		return nil, zerr.With(invalid("unknown destination"), "destination", dto.Destination)
	}

	if t.Static {
		t.Options = domain.StaticOptions(driver)
	}
	for _, raw := range dto.Options {
		key, value, _ := strings.Cut(raw, "=")
		if key == "" {
			return nil, zerr.With(invalid("option without a name"), "option", raw)
		}
		t.Options.Set(key, value)
	}

	for _, o := range dto.PkgConfigOptions {
		if o.Key == "" || len(o.Args) == 0 {
			return nil, invalid("pkg-config option needs a key and arguments")
		}
		t.PkgConfigOptions = append(t.PkgConfigOptions, domain.PkgConfigOption{Key: o.Key, Args: o.Args})
	}

	for _, a := range dto.Unsupported {
		arch, err := parseArch(a)
		if err != nil {
			return nil, zerr.With(err, "target", dto.Name)
		}
		t.Unsupported = append(t.Unsupported, arch)
	}

	var err error
	if t.MinOSVersion, err = parseVersions(dto.MinOSVersion); err != nil {
		return nil, zerr.With(err, "target", dto.Name)
	}
	if t.MinSDKVersion, err = parseVersions(dto.MinSDKVersion); err != nil {
		return nil, zerr.With(err, "target", dto.Name)
	}

	switch {
	case dto.Source.Git != nil && dto.Source.Package != nil:
		return nil, invalid("source must be either git or package")
	case dto.Source.Git != nil:
		if dto.Source.Git.URL == "" {
			return nil, invalid("git source needs a url")
		}
		t.Source.Git = &domain.GitSource{URL: dto.Source.Git.URL, Branch: dto.Source.Git.Branch}
	case dto.Source.Package != nil:
		p := dto.Source.Package
		if p.URL == "" || len(p.SHA256) != 64 {
			return nil, invalid("package source needs a url and a sha256 checksum")
		}
		t.Source.Package = &domain.SourcePackage{
			URL:     p.URL,
			SHA256:  strings.ToLower(p.SHA256),
			Patches: p.Patches,
		}
	}

	t.Extras = buildExtras(dto.PostBuild)

	return t, nil
}

func buildExtras(dto PostBuildDTO) domain.PostBuildExtras {
	extras := domain.PostBuildExtras{
		PCLibs:          dto.PCLibs,
		ConfigScripts:   dto.ConfigScripts,
		PlatformHeaders: dto.PlatformHeaders,
	}
	for _, c := range dto.BinCopies {
		extras.BinCopies = append(extras.BinCopies, domain.BinCopy{Name: c.Name, NewName: c.NewName})
	}
	for _, pc := range dto.PCFiles {
		extras.PCFiles = append(extras.PCFiles, domain.PCFile{
			File:            pc.File,
			Name:            pc.Name,
			Description:     pc.Description,
			Version:         pc.Version,
			Requires:        pc.Requires,
			RequiresPrivate: pc.RequiresPrivate,
			Libs:            pc.Libs,
			LibsPrivate:     pc.LibsPrivate,
			Cflags:          pc.Cflags,
		})
	}
	if dto.KeepModule != nil {
		extras.KeepModule = &domain.ModuleTarget{Module: dto.KeepModule.Module, Target: dto.KeepModule.Target}
	}
	return extras
}

func parseArch(s string) (domain.Arch, error) {
	switch domain.Arch(s) {
	case domain.ArchX86_64, domain.ArchARM64:
		return domain.Arch(s), nil
	}
	return "", zerr.With(zerr.Wrap(domain.ErrInvalidTarget, "unknown architecture"), "arch", s)
}

func parseVersions(in map[string]string) (map[domain.Arch]domain.Version, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[domain.Arch]domain.Version, len(in))
	for a, raw := range in {
		arch, err := parseArch(a)
		if err != nil {
			return nil, err
		}
		v, err := domain.ParseVersion(raw)
		if err != nil {
			return nil, err
		}
		out[arch] = v
	}
	return out, nil
}
