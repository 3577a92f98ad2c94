package app

import "go.trai.ch/unibuild/internal/core/domain"

// ApplyBuildOptions exposes BuildOptions.apply for tests.
func ApplyBuildOptions(o BuildOptions, s *domain.Settings) error {
	return o.apply(s)
}
