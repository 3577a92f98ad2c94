// Package settings loads run settings from unibuild.yaml and UNIBUILD_* variables.
package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/zerr"
)

// EnvPrefix is the prefix of environment variables that override settings.
const EnvPrefix = "UNIBUILD"

// Loader implements ports.SettingsLoader with viper.
type Loader struct{}

// NewLoader creates a new settings loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load discovers the project root from cwd and reads its settings.
// Without a settings file the root is cwd and only defaults and environment apply.
func (l *Loader) Load(cwd string) (*domain.Settings, error) {
	cwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve working directory")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root := cwd
	if path := FindSettings(cwd); path != "" {
		root = filepath.Dir(path)
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, err.Error()), "path", path)
			}
		}
	}

	var s domain.Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, zerr.Wrap(domain.ErrConfigParseFailed, err.Error())
	}

	s.Root = root
	s.SourcePath = resolve(root, s.SourcePath)
	s.BuildPath = resolve(root, s.BuildPath)
	s.OutputPath = resolve(root, s.OutputPath)
	s.X86_64.SDKPath = resolve(root, s.X86_64.SDKPath)
	s.ARM64.SDKPath = resolve(root, s.ARM64.SDKPath)

	return &s, nil
}

// FindSettings walks up from dir and returns the first unibuild.yaml found, or "".
func FindSettings(dir string) string {
	current := dir
	for {
		candidate := filepath.Join(current, domain.SettingsFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}

		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source_path", "")
	v.SetDefault("build_path", "")
	v.SetDefault("output_path", "")
	v.SetDefault("jobs", 0)
	v.SetDefault("verbose", false)
	v.SetDefault("xcode", false)
	v.SetDefault("catalog", "")
	v.SetDefault("log_format", "text")
	v.SetDefault("merge.divergent", []string{})
	for _, arch := range []string{string(domain.ArchX86_64), string(domain.ArchARM64)} {
		v.SetDefault(arch+".sdk_path", "")
		v.SetDefault(arch+".os_version", "")
		v.SetDefault(arch+".disabled", false)
	}
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
