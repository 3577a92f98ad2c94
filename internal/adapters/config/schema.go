package config

// CatalogFile represents the structure of a targets.yaml file.
type CatalogFile struct {
	Version string       `yaml:"version"`
	Targets []*TargetDTO `yaml:"targets"`
}

// TargetDTO represents a target definition in the catalog.
type TargetDTO struct {
	Name        string            `yaml:"name"`
	Driver      string            `yaml:"driver"`
	Destination string            `yaml:"destination"`
	Options     []string          `yaml:"options"`
	Environment map[string]string `yaml:"environment"`
	SrcRoot     string            `yaml:"src_root"`
	// MultiPlatform defaults to true for build drivers.
	MultiPlatform    *bool                `yaml:"multi_platform"`
	Unsupported      []string             `yaml:"unsupported"`
	Static           bool                 `yaml:"static"`
	Source           SourceDTO            `yaml:"source"`
	Detect           DetectDTO            `yaml:"detect"`
	Outputs          []string             `yaml:"outputs"`
	MinOSVersion     map[string]string    `yaml:"min_os_version"`
	MinSDKVersion    map[string]string    `yaml:"min_sdk_version"`
	PkgConfigOptions []PkgConfigOptionDTO `yaml:"pkg_config_options"`
	ForceCross       bool                 `yaml:"force_cross"`
	PostBuild        PostBuildDTO         `yaml:"post_build"`
}

// SourceDTO selects either a git checkout or an archive package.
type SourceDTO struct {
	Git     *GitDTO     `yaml:"git"`
	Package *PackageDTO `yaml:"package"`
}

// GitDTO is a repository to clone.
type GitDTO struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
}

// PackageDTO is a checksummed source archive.
type PackageDTO struct {
	URL     string   `yaml:"url"`
	SHA256  string   `yaml:"sha256"`
	Patches []string `yaml:"patches"`
}

// DetectDTO describes how to recognize the target in an external source tree.
type DetectDTO struct {
	Files   []string `yaml:"files"`
	Absent  []string `yaml:"absent"`
	Project string   `yaml:"project"`
}

// PkgConfigOptionDTO sets an option from a pkg-config query.
type PkgConfigOptionDTO struct {
	Key  string   `yaml:"key"`
	Args []string `yaml:"args"`
}

// PostBuildDTO lists the optional post-build steps.
type PostBuildDTO struct {
	PCLibs          map[string]string `yaml:"pc_libs"`
	ConfigScripts   []string          `yaml:"config_scripts"`
	PlatformHeaders []string          `yaml:"platform_headers"`
	BinCopies       []BinCopyDTO      `yaml:"bin_copies"`
	PCFiles         []PCFileDTO       `yaml:"pc_files"`
	KeepModule      *KeepModuleDTO    `yaml:"keep_module"`
}

// BinCopyDTO copies a built file into install/bin.
type BinCopyDTO struct {
	Name    string `yaml:"name"`
	NewName string `yaml:"new_name"`
}

// PCFileDTO describes a generated pkg-config file.
type PCFileDTO struct {
	File            string `yaml:"file"`
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Version         string `yaml:"version"`
	Requires        string `yaml:"requires"`
	RequiresPrivate string `yaml:"requires_private"`
	Libs            string `yaml:"libs"`
	LibsPrivate     string `yaml:"libs_private"`
	Cflags          string `yaml:"cflags"`
}

// KeepModuleDTO names the cmake module target to keep.
type KeepModuleDTO struct {
	Module string `yaml:"module"`
	Target string `yaml:"target"`
}
