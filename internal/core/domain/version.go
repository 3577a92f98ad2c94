package domain

import (
	"regexp"
	"strings"

	"go.trai.ch/zerr"
	"golang.org/x/mod/semver"
)

// Version is a dotted macOS or SDK version such as 10.9 or 11.0.
// The zero value means "unspecified".
type Version struct {
	raw string
}

var sdkVersionPattern = regexp.MustCompile(`(?i)/MacOSX(\d+\.\d+)\.sdk`)

// ParseVersion parses a dotted numeric version.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, nil
	}
	if !semver.IsValid("v" + s) {
		return Version{}, zerr.With(zerr.Wrap(ErrInvalidVersion, "failed to parse version"), "version", s)
	}
	return Version{raw: s}, nil
}

// MustParseVersion is ParseVersion for constants. It panics on invalid input.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// SDKVersionFromPath extracts the version from a .../MacOSX<ver>.sdk path.
func SDKVersionFromPath(path string) (Version, bool) {
	m := sdkVersionPattern.FindStringSubmatch(path)
	if m == nil {
		return Version{}, false
	}
	v, err := ParseVersion(m[1])
	if err != nil {
		return Version{}, false
	}
	return v, true
}

// IsZero reports whether the version is unspecified.
func (v Version) IsZero() bool {
	return v.raw == ""
}

// Compare returns -1, 0 or +1. An unspecified version sorts first.
func (v Version) Compare(other Version) int {
	switch {
	case v.IsZero() && other.IsZero():
		return 0
	case v.IsZero():
		return -1
	case other.IsZero():
		return 1
	}
	return semver.Compare("v"+v.raw, "v"+other.raw)
}

// Less reports whether v is older than other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func (v Version) String() string {
	return v.raw
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
