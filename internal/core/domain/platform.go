package domain

import (
	"path/filepath"
	"runtime"
)

// Arch is a macOS CPU architecture name as understood by lipo and clang.
type Arch string

const (
	// ArchX86_64 is Intel 64-bit.
	ArchX86_64 Arch = "x86_64"
	// ArchARM64 is Apple Silicon.
	ArchARM64 Arch = "arm64"
)

// Minimum deployment targets supported by the toolchain.
var (
	DefaultOSVersionX86_64 = MustParseVersion("10.9")
	DefaultOSVersionARM64  = MustParseVersion("11.0")
)

// DefaultOSVersion returns the default minimum OS version for an architecture.
func DefaultOSVersion(arch Arch) Version {
	if arch == ArchARM64 {
		return DefaultOSVersionARM64
	}
	return DefaultOSVersionX86_64
}

// HostTriple returns the GNU host triple for an architecture.
func HostTriple(arch Arch) string {
	if arch == ArchARM64 {
		return "aarch64-apple-darwin"
	}
	return "x86_64-apple-darwin"
}

// NativeArch returns the architecture of the running machine.
func NativeArch() Arch {
	if runtime.GOARCH == "arm64" {
		return ArchARM64
	}
	return ArchX86_64
}

// Platform describes one architecture a target is built for.
type Platform struct {
	Arch      Arch
	Host      string
	OSVersion Version
	SDKPath   string
	CC        string
	CXX       string
}

// NewPlatform derives the host triple and the prefix compiler wrappers for arch.
func NewPlatform(arch Arch, osVersion Version, sdkPath, prefix string) Platform {
	host := HostTriple(arch)
	return Platform{
		Arch:      arch,
		Host:      host,
		OSVersion: osVersion,
		SDKPath:   sdkPath,
		CC:        filepath.Join(prefix, "bin", host+"-gcc"),
		CXX:       filepath.Join(prefix, "bin", host+"-g++"),
	}
}

// CMakeProcessor returns the CMAKE_SYSTEM_PROCESSOR value for the platform.
func (p Platform) CMakeProcessor() string {
	if p.Arch == ArchARM64 {
		return "aarch64"
	}
	return string(p.Arch)
}

// IsNative reports whether the platform matches the given native architecture.
func (p Platform) IsNative(native Arch) bool {
	return p.Arch == native
}

// OrderNativeFirst returns a copy of platforms with the native one moved to index 0.
func OrderNativeFirst(platforms []Platform, native Arch) []Platform {
	ordered := make([]Platform, 0, len(platforms))
	for _, p := range platforms {
		if p.Arch == native {
			ordered = append(ordered, p)
		}
	}
	for _, p := range platforms {
		if p.Arch != native {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
