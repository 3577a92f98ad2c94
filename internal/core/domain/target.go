package domain

import (
	"maps"
	"slices"
)

// Driver selects the build-tool family that implements a target's lifecycle.
type Driver string

const (
	// DriverMake builds with gmake in a symlinked copy of the source tree.
	DriverMake Driver = "make"
	// DriverConfigureMake runs ./configure before building like DriverMake.
	DriverConfigureMake Driver = "configure-make"
	// DriverCMake generates a Makefile or Xcode project with cmake.
	DriverCMake Driver = "cmake"
	// DriverCleanAll removes every ignored file from the project root.
	DriverCleanAll Driver = "clean-all"
	// DriverCleanDeps removes ignored files below deps/.
	DriverCleanDeps Driver = "clean-deps"
	// DriverDownloadCMake makes sure a cmake binary is available.
	DriverDownloadCMake Driver = "download-cmake"
	// DriverTestDeps compiles and runs the dependency smoke tests.
	DriverTestDeps Driver = "test-deps"
)

// DownloadCMakeTarget is the name of the bootstrap target run before every other target.
const DownloadCMakeTarget = "download-cmake"

// Valid reports whether d is a known driver family.
func (d Driver) Valid() bool {
	switch d {
	case DriverMake, DriverConfigureMake, DriverCMake,
		DriverCleanAll, DriverCleanDeps, DriverDownloadCMake, DriverTestDeps:
		return true
	}
	return false
}

// Special reports whether d is one of the maintenance drivers.
func (d Driver) Special() bool {
	switch d {
	case DriverCleanAll, DriverCleanDeps, DriverDownloadCMake, DriverTestDeps:
		return true
	}
	return false
}

// Destination is the directory class a target installs into.
type Destination string

const (
	// DestinationDeps installs into deps/<name> and is linked into the prefix.
	DestinationDeps Destination = "deps"
	// DestinationOutput installs into output/<name>.
	DestinationOutput Destination = "output"
)

// DetectRule describes how to recognize a target in an external source tree.
type DetectRule struct {
	// Files must all exist relative to the source root.
	Files []string
	// Absent must not exist relative to the source root.
	Absent []string
	// Project overrides the expected cmake project name.
	Project string
}

// IsZero reports whether no explicit rule is set.
func (r DetectRule) IsZero() bool {
	return len(r.Files) == 0 && len(r.Absent) == 0 && r.Project == ""
}

// PkgConfigOption sets a build option from a pkg-config query at configure time.
type PkgConfigOption struct {
	Key  string
	Args []string
}

// BinCopy copies a built file from the build directory into install/bin.
type BinCopy struct {
	Name    string
	NewName string
}

// PCFile describes a pkg-config file to generate for libraries that ship none.
type PCFile struct {
	File            string
	Name            string
	Description     string
	Version         string
	Requires        string
	RequiresPrivate string
	Libs            string
	LibsPrivate     string
	Cflags          string
}

// ModuleTarget names the single imported target a cmake module should keep.
type ModuleTarget struct {
	Module string
	Target string
}

// PostBuildExtras are the optional steps run after a target is installed.
type PostBuildExtras struct {
	// PCLibs replaces the Libs: line of the named .pc files (base name without extension).
	PCLibs          map[string]string
	ConfigScripts   []string
	PlatformHeaders []string
	BinCopies       []BinCopy
	PCFiles         []PCFile
	KeepModule      *ModuleTarget
}

// Target is the immutable specification of a buildable unit.
type Target struct {
	Name             string
	Driver           Driver
	Destination      Destination
	Options          Options
	PkgConfigOptions []PkgConfigOption
	Environment      map[string]string
	SrcRoot          string
	MultiPlatform    bool
	Unsupported      []Arch
	Static           bool
	Source           Source
	Detect           DetectRule
	Outputs          []string
	MinOSVersion     map[Arch]Version
	MinSDKVersion    map[Arch]Version
	ForceCross       bool
	Extras           PostBuildExtras
}

// Supports reports whether the target can be built for arch.
func (t *Target) Supports(arch Arch) bool {
	return !slices.Contains(t.Unsupported, arch)
}

// MinimumOSVersion returns the target's minimum OS version for arch.
func (t *Target) MinimumOSVersion(arch Arch) Version {
	if v, ok := t.MinOSVersion[arch]; ok {
		return v
	}
	return DefaultOSVersion(arch)
}

// MinimumSDKVersion returns the target's minimum SDK version for arch.
func (t *Target) MinimumSDKVersion(arch Arch) Version {
	if v, ok := t.MinSDKVersion[arch]; ok {
		return v
	}
	return DefaultOSVersion(arch)
}

// Clone returns a deep copy of the target.
func (t *Target) Clone() *Target {
	c := *t
	c.Options = t.Options.Clone()
	c.Environment = maps.Clone(t.Environment)
	c.Unsupported = slices.Clone(t.Unsupported)
	c.Source = t.Source.Clone()
	c.Outputs = cloneStrings(t.Outputs)
	c.MinOSVersion = maps.Clone(t.MinOSVersion)
	c.MinSDKVersion = maps.Clone(t.MinSDKVersion)
	c.Detect = DetectRule{
		Files:   cloneStrings(t.Detect.Files),
		Absent:  cloneStrings(t.Detect.Absent),
		Project: t.Detect.Project,
	}

	if t.PkgConfigOptions != nil {
		c.PkgConfigOptions = make([]PkgConfigOption, len(t.PkgConfigOptions))
		for i, o := range t.PkgConfigOptions {
			c.PkgConfigOptions[i] = PkgConfigOption{Key: o.Key, Args: cloneStrings(o.Args)}
		}
	}

	c.Extras = PostBuildExtras{
		PCLibs:          maps.Clone(t.Extras.PCLibs),
		ConfigScripts:   cloneStrings(t.Extras.ConfigScripts),
		PlatformHeaders: cloneStrings(t.Extras.PlatformHeaders),
		BinCopies:       slices.Clone(t.Extras.BinCopies),
		PCFiles:         slices.Clone(t.Extras.PCFiles),
	}
	if t.Extras.KeepModule != nil {
		km := *t.Extras.KeepModule
		c.Extras.KeepModule = &km
	}

	return &c
}

// StaticOptions returns the options that turn a dependency into a static-only build.
func StaticOptions(d Driver) Options {
	switch d {
	case DriverCMake:
		return Options{
			{Key: "BUILD_SHARED_LIBS", Value: "NO"},
			{Key: "ENABLE_SHARED", Value: "NO"},
			{Key: "LIBTYPE", Value: "STATIC"},
		}
	case DriverConfigureMake:
		return Options{{Key: "--enable-shared", Value: "no"}}
	default:
		return nil
	}
}
