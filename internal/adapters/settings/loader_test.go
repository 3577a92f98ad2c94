package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/unibuild/internal/adapters/settings"
	"go.trai.ch/unibuild/internal/core/domain"
)

func TestLoader_Load_Defaults(t *testing.T) {
	dir := t.TempDir()

	s, err := settings.NewLoader().Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, s.Root)
	assert.Equal(t, 0, s.Jobs)
	assert.Equal(t, "text", s.LogFormat)
	assert.False(t, s.Xcode)
	assert.Empty(t, s.Merge.Divergent)
	assert.Empty(t, s.SourcePath)
}

func TestLoader_Load_DiscoversRoot(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, `
jobs: 6
verbose: true
output_path: dist
source_path: /opt/src
catalog: more-targets.yaml
x86_64:
  sdk_path: sdk/MacOSX10.11.sdk
  os_version: "10.10"
arm64:
  disabled: true
merge:
  divergent:
    - "*.h"
    - share/doc/**
`)
	nested := filepath.Join(root, "build", "zstd")
	require.NoError(t, os.MkdirAll(nested, domain.DirPerm))

	s, err := settings.NewLoader().Load(nested)
	require.NoError(t, err)

	assert.Equal(t, root, s.Root)
	assert.Equal(t, 6, s.Jobs)
	assert.True(t, s.Verbose)
	assert.Equal(t, filepath.Join(root, "dist"), s.OutputPath)
	assert.Equal(t, "/opt/src", s.SourcePath)
	assert.Equal(t, "more-targets.yaml", s.Catalog)
	assert.Equal(t, filepath.Join(root, "sdk", "MacOSX10.11.sdk"), s.X86_64.SDKPath)
	assert.Equal(t, "10.10", s.Arch(domain.ArchX86_64).OSVersion)
	assert.True(t, s.Arch(domain.ArchARM64).Disabled)
	assert.Equal(t, []string{"*.h", "share/doc/**"}, s.Merge.Divergent)
}

func TestLoader_Load_EnvOverrides(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, "jobs: 2\n")

	t.Setenv("UNIBUILD_JOBS", "12")
	t.Setenv("UNIBUILD_XCODE", "true")
	t.Setenv("UNIBUILD_ARM64_OS_VERSION", "12.0")
	t.Setenv("UNIBUILD_LOG_FORMAT", "json")

	s, err := settings.NewLoader().Load(root)
	require.NoError(t, err)

	assert.Equal(t, 12, s.Jobs)
	assert.True(t, s.Xcode)
	assert.Equal(t, "12.0", s.ARM64.OSVersion)
	assert.Equal(t, "json", s.LogFormat)
}

func TestLoader_Load_InvalidFile(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, "jobs: [1, 2\n")

	_, err := settings.NewLoader().Load(root)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrConfigParseFailed)
}

func TestFindSettings(t *testing.T) {
	root := t.TempDir()
	assert.Empty(t, settings.FindSettings(root))

	writeSettings(t, root, "")
	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(deep, domain.DirPerm))
	assert.Equal(t, filepath.Join(root, domain.SettingsFileName), settings.FindSettings(deep))
}

func writeSettings(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, domain.SettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), domain.PrivateFilePerm))
}
