package domain

import "go.trai.ch/zerr"

var (
	// ErrTargetNotFound is returned when a requested target is not in the catalog.
	ErrTargetNotFound = zerr.New("target not found")

	// ErrDuplicateTarget is returned when a catalog already holds a target with the same name.
	ErrDuplicateTarget = zerr.New("target already exists")

	// ErrInvalidTarget is returned when a target definition is incomplete or malformed.
	ErrInvalidTarget = zerr.New("invalid target definition")

	// ErrTargetNotDetected is returned when no catalog target recognizes a source tree.
	ErrTargetNotDetected = zerr.New("failed to detect target from source tree")

	// ErrTargetAmbiguous is returned when more than one catalog target recognizes a source tree.
	ErrTargetAmbiguous = zerr.New("source tree matches more than one target")

	// ErrInvalidTransition is returned when a lifecycle phase is entered out of order.
	ErrInvalidTransition = zerr.New("invalid lifecycle transition")

	// ErrInstallPathUnset is returned when configure runs before the install path is known.
	ErrInstallPathUnset = zerr.New("install path is not set")

	// ErrNoPlatforms is returned when every architecture has been disabled.
	ErrNoPlatforms = zerr.New("no target platforms enabled")

	// ErrInvalidVersion is returned when an OS or SDK version cannot be parsed.
	ErrInvalidVersion = zerr.New("invalid version")

	// ErrMinimumOSVersion is returned when the platform deployment target is below the target's minimum.
	ErrMinimumOSVersion = zerr.New("minimum OS version requirement is not met")

	// ErrMinimumSDKVersion is returned when the SDK is older than the target's minimum.
	ErrMinimumSDKVersion = zerr.New("minimum SDK version requirement is not met")

	// ErrXcodeUnsupported is returned when a driver cannot run in Xcode project mode.
	ErrXcodeUnsupported = zerr.New("target does not support Xcode project generation")

	// ErrCommandFailed is returned when an external tool exits with a non-zero status.
	ErrCommandFailed = zerr.New("command failed")

	// ErrDownloadFailed is returned when a source archive cannot be fetched.
	ErrDownloadFailed = zerr.New("failed to download source archive")

	// ErrChecksumMismatch is returned when a source archive does not match its expected SHA-256.
	ErrChecksumMismatch = zerr.New("checksum mismatch")

	// ErrArchiveListFailed is returned when the entries of an archive cannot be listed.
	ErrArchiveListFailed = zerr.New("failed to list archive entries")

	// ErrArchiveRootNotFound is returned when an archive has no common leading path component.
	ErrArchiveRootNotFound = zerr.New("failed to figure out source code path")

	// ErrExtractFailed is returned when an archive cannot be extracted.
	ErrExtractFailed = zerr.New("failed to extract source archive")

	// ErrUnsupportedArchive is returned when no native decoder exists for an archive format.
	ErrUnsupportedArchive = zerr.New("unsupported archive format")

	// ErrIllegalArchivePath is returned when an archive entry would escape the extraction directory.
	ErrIllegalArchivePath = zerr.New("illegal path in archive")

	// ErrPatchNotFound is returned when a named patch has no file under patch/.
	ErrPatchNotFound = zerr.New("patch file not found")

	// ErrPatchFailed is returned when a patch that passed its dry run fails to apply.
	ErrPatchFailed = zerr.New("failed to apply patch")

	// ErrCloneFailed is returned when a git repository cannot be cloned.
	ErrCloneFailed = zerr.New("failed to clone repository")

	// ErrCheckoutFailed is returned when a git branch cannot be checked out.
	ErrCheckoutFailed = zerr.New("failed to check out branch")

	// ErrPkgConfigFailed is returned when pkg-config cannot resolve a query.
	ErrPkgConfigFailed = zerr.New("pkg-config query failed")

	// ErrMergeFailed is returned when per-architecture install trees cannot be merged.
	ErrMergeFailed = zerr.New("failed to merge install trees")

	// ErrPrefixFailed is returned when the prefix symlink farm cannot be assembled.
	ErrPrefixFailed = zerr.New("failed to assemble prefix")

	// ErrArtifactFailed is returned when generated metadata cannot be rewritten.
	ErrArtifactFailed = zerr.New("failed to process installed artifacts")

	// ErrBuildExecutionFailed is returned when the build execution fails.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrStoreCreateFailed is returned when the receipt store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create receipt store directory")

	// ErrStoreReadFailed is returned when a build receipt cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read build receipt")

	// ErrStoreUnmarshalFailed is returned when a build receipt cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal build receipt")

	// ErrStoreMarshalFailed is returned when a build receipt cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal build receipt")

	// ErrStoreWriteFailed is returned when a build receipt cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write build receipt")

	// ErrConfigReadFailed is returned when a settings or catalog file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when a settings or catalog file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")
)
