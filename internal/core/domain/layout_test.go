package domain_test

import (
	"path/filepath"
	"testing"

	"go.trai.ch/unibuild/internal/core/domain"
)

func TestLayoutPaths(t *testing.T) {
	root := filepath.Join("/", "work")
	l := domain.NewLayout(root)

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "DefaultMetaPath",
			got:      domain.DefaultMetaPath(),
			expected: ".unibuild",
		},
		{
			name:     "DefaultReceiptsPath",
			got:      domain.DefaultReceiptsPath(),
			expected: filepath.Join(".unibuild", "receipts"),
		},
		{
			name:     "Deps",
			got:      l.Deps(),
			expected: filepath.Join(root, "deps"),
		},
		{
			name:     "Include",
			got:      l.Include(),
			expected: filepath.Join(root, "prefix", "include"),
		},
		{
			name:     "Lib",
			got:      l.Lib(),
			expected: filepath.Join(root, "prefix", "lib"),
		},
		{
			name:     "Bin",
			got:      l.Bin(),
			expected: filepath.Join(root, "prefix", "bin"),
		},
		{
			name:     "PatchFile",
			got:      l.PatchFile("lzma-add-cmake"),
			expected: filepath.Join(root, "patch", "lzma-add-cmake.diff"),
		},
		{
			name:     "TargetSource",
			got:      l.TargetSource("zstd"),
			expected: filepath.Join(root, "source", "zstd"),
		},
		{
			name:     "BuildDir make",
			got:      l.BuildDir("zstd", false),
			expected: filepath.Join(root, "build", "zstd", "make"),
		},
		{
			name:     "BuildDir xcode",
			got:      l.BuildDir("gzdoom", true),
			expected: filepath.Join(root, "build", "gzdoom", "xcode"),
		},
		{
			name:     "InstallDir deps",
			got:      l.InstallDir("zstd", domain.DestinationDeps),
			expected: filepath.Join(root, "deps", "zstd"),
		},
		{
			name:     "InstallDir output",
			got:      l.InstallDir("gzdoom", domain.DestinationOutput),
			expected: filepath.Join(root, "output", "gzdoom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}
