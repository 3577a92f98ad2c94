package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// BuildState is the run-wide context handed to every lifecycle hook.
// It is owned by a single orchestrator run and mutated in place between passes.
type BuildState struct {
	Layout Layout

	// Source is the current source tree.
	Source string
	// ExternalSource is set when the caller supplied the source tree.
	ExternalSource bool

	BuildPath       string
	NativeBuildPath string
	InstallPath     string

	Platform  Platform
	Platforms []Platform

	Jobs    int
	Verbose bool
	Xcode   bool
}

// NewBuildState returns a state over layout with a single job.
func NewBuildState(layout Layout) *BuildState {
	return &BuildState{Layout: layout, Jobs: 1}
}

// Fresh returns a new state that shares the layout, platforms and job settings
// but none of the per-target paths. Nested bootstrap runs use it.
func (s *BuildState) Fresh() *BuildState {
	return &BuildState{
		Layout:    s.Layout,
		Platform:  s.Platform,
		Platforms: append([]Platform(nil), s.Platforms...),
		Jobs:      s.Jobs,
		Verbose:   s.Verbose,
	}
}

// RequireInstallPath fails when the install path has not been derived yet.
func (s *BuildState) RequireInstallPath() error {
	if s.InstallPath == "" {
		return zerr.Wrap(ErrInstallPathUnset, "configure requires an install path")
	}
	return nil
}

// Expand replaces the ${...} placeholders an option value or environment
// override may carry with the paths of the current pass.
// Unknown placeholders are kept verbatim so pkg-config variables survive.
func (s *BuildState) Expand(value string) string {
	if !strings.Contains(value, "${") {
		return value
	}
	return strings.NewReplacer(
		"${prefix}", s.Layout.Prefix(),
		"${include}", s.Layout.Include(),
		"${lib}", s.Layout.Lib(),
		"${bin}", s.Layout.Bin(),
		"${install}", s.InstallPath,
		"${source}", s.Source,
		"${build}", s.BuildPath,
		"${native_build}", s.NativeBuildPath,
		"${arch}", string(s.Platform.Arch),
	).Replace(value)
}
