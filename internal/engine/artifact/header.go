package artifact

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/zerr"
)

const platformHeaderTemplate = `#pragma once

#if defined(__x86_64__)
#   include "%[1]s"
#elif defined(__aarch64__)
#   include "%[2]s"
#else
#   error Unknown architecture
#endif
`

// PlatformHeaderName returns the name an architecture-specific copy of base is stored under.
func PlatformHeaderName(arch domain.Arch, base string) string {
	return "_unibuild_" + string(arch) + "_" + base
}

// MakePlatformHeader moves include/<header> aside under an architecture
// specific name and writes a dispatcher in its place. After merging, the
// dispatcher selects the right copy at compile time.
func MakePlatformHeader(install string, arch domain.Arch, header string) error {
	dir, base := path.Split(header)
	include := filepath.Join(install, "include")

	common := filepath.Join(include, filepath.FromSlash(header))
	platform := filepath.Join(include, filepath.FromSlash(dir), PlatformHeaderName(arch, base))

	if err := os.Rename(common, platform); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "header", header)
	}

	content := fmt.Sprintf(platformHeaderTemplate,
		PlatformHeaderName(domain.ArchX86_64, base),
		PlatformHeaderName(domain.ArchARM64, base))

	if err := os.WriteFile(common, []byte(content), domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "header", header)
	}
	return nil
}
