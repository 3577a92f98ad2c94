package domain

import (
	"path"
	"strings"
)

// SourceKind tags how a target obtains its source code.
type SourceKind int

const (
	// SourceNone means the target has no source of its own.
	SourceNone SourceKind = iota
	// SourceGit is a git checkout.
	SourceGit
	// SourceArchive is a downloaded, checksummed and patched archive.
	SourceArchive
)

// GitSource is a repository to clone, optionally pinned to a branch.
type GitSource struct {
	URL    string
	Branch string
}

// SourcePackage is an archive with its expected SHA-256 and the patches to apply.
type SourcePackage struct {
	URL     string
	SHA256  string
	Patches []string
}

// FileName returns the last path segment of the archive URL.
func (p SourcePackage) FileName() string {
	u := p.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}

// Source is a tagged union of the supported acquisition modes.
type Source struct {
	Git     *GitSource
	Package *SourcePackage
}

// Kind returns which acquisition mode is set.
func (s Source) Kind() SourceKind {
	switch {
	case s.Git != nil:
		return SourceGit
	case s.Package != nil:
		return SourceArchive
	default:
		return SourceNone
	}
}

// Clone returns a deep copy.
func (s Source) Clone() Source {
	var c Source
	if s.Git != nil {
		g := *s.Git
		c.Git = &g
	}
	if s.Package != nil {
		p := *s.Package
		p.Patches = cloneStrings(s.Package.Patches)
		c.Package = &p
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
