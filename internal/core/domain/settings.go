package domain

// ArchSettings are per-architecture overrides.
type ArchSettings struct {
	SDKPath   string `mapstructure:"sdk_path"`
	OSVersion string `mapstructure:"os_version"`
	Disabled  bool   `mapstructure:"disabled"`
}

// MergeSettings configures the install tree merge.
type MergeSettings struct {
	// Divergent lists glob patterns of plain files expected to differ between architectures.
	Divergent []string `mapstructure:"divergent"`
}

// Settings is the effective configuration of a run.
// Values come from unibuild.yaml, UNIBUILD_* variables and command-line flags, in that order.
type Settings struct {
	Root       string        `mapstructure:"-"`
	SourcePath string        `mapstructure:"source_path"`
	BuildPath  string        `mapstructure:"build_path"`
	OutputPath string        `mapstructure:"output_path"`
	Jobs       int           `mapstructure:"jobs"`
	Verbose    bool          `mapstructure:"verbose"`
	Xcode      bool          `mapstructure:"xcode"`
	X86_64     ArchSettings  `mapstructure:"x86_64"`
	ARM64      ArchSettings  `mapstructure:"arm64"`
	Merge      MergeSettings `mapstructure:"merge"`
	Catalog    string        `mapstructure:"catalog"`
	LogFormat  string        `mapstructure:"log_format"`
}

// Arch returns the per-architecture settings for arch.
func (s *Settings) Arch(arch Arch) ArchSettings {
	if arch == ArchARM64 {
		return s.ARM64
	}
	return s.X86_64
}
