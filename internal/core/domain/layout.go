package domain

import "path/filepath"

const (
	// MetaDirName is the name of the internal metadata directory.
	MetaDirName = ".unibuild"

	// ReceiptsDirName is the name of the build receipt directory.
	ReceiptsDirName = "receipts"

	// SettingsFileName is the name of the project settings file.
	SettingsFileName = "unibuild.yaml"

	// CatalogFileName is the name of the optional project target catalog.
	CatalogFileName = "targets.yaml"

	// DepsDirName holds one install tree per built dependency.
	DepsDirName = "deps"

	// PrefixDirName holds the symlink farm over all dependencies.
	PrefixDirName = "prefix"

	// BuildDirName holds per-target build directories.
	BuildDirName = "build"

	// OutputDirName holds installed main targets.
	OutputDirName = "output"

	// SourceDirName holds downloaded and checked out source code.
	SourceDirName = "source"

	// PatchDirName holds named patch files.
	PatchDirName = "patch"

	// SDKDirName is searched for MacOSX<version>.sdk directories.
	SDKDirName = "sdk"

	// TestDirName holds dependency smoke tests.
	TestDirName = "test"

	// PatchExt is the extension of patch files.
	PatchExt = ".diff"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// Layout is the directory contract rooted at the project root.
type Layout struct {
	Root       string
	SourceRoot string
	OutputRoot string
}

// NewLayout returns a Layout with the default source and output roots.
func NewLayout(root string) Layout {
	return Layout{
		Root:       root,
		SourceRoot: filepath.Join(root, SourceDirName),
		OutputRoot: filepath.Join(root, OutputDirName),
	}
}

// Deps returns the dependency install root.
func (l Layout) Deps() string { return filepath.Join(l.Root, DepsDirName) }

// Prefix returns the prefix symlink farm root.
func (l Layout) Prefix() string { return filepath.Join(l.Root, PrefixDirName) }

// Bin returns prefix/bin.
func (l Layout) Bin() string { return filepath.Join(l.Prefix(), "bin") }

// Include returns prefix/include.
func (l Layout) Include() string { return filepath.Join(l.Prefix(), "include") }

// Lib returns prefix/lib.
func (l Layout) Lib() string { return filepath.Join(l.Prefix(), "lib") }

// Patches returns the patch directory.
func (l Layout) Patches() string { return filepath.Join(l.Root, PatchDirName) }

// PatchFile returns the path of the named patch.
func (l Layout) PatchFile(name string) string {
	return filepath.Join(l.Patches(), name+PatchExt)
}

// SDK returns the directory searched for SDKs.
func (l Layout) SDK() string { return filepath.Join(l.Root, SDKDirName) }

// Tests returns the dependency smoke test directory.
func (l Layout) Tests() string { return filepath.Join(l.Root, TestDirName) }

// TargetSource returns source/<name>.
func (l Layout) TargetSource(name string) string { return filepath.Join(l.SourceRoot, name) }

// BuildDir returns build/<name>/make or build/<name>/xcode.
func (l Layout) BuildDir(name string, xcode bool) string {
	kind := "make"
	if xcode {
		kind = "xcode"
	}
	return filepath.Join(l.Root, BuildDirName, name, kind)
}

// InstallDir returns the install tree for a target of the given destination class.
func (l Layout) InstallDir(name string, dest Destination) string {
	if dest == DestinationOutput {
		return filepath.Join(l.OutputRoot, name)
	}
	return filepath.Join(l.Deps(), name)
}

// DefaultMetaPath returns the default root directory for unibuild metadata.
func DefaultMetaPath() string {
	return MetaDirName
}

// DefaultReceiptsPath returns the default path for build receipts.
// It joins .unibuild and receipts.
func DefaultReceiptsPath() string {
	return filepath.Join(MetaDirName, ReceiptsDirName)
}
