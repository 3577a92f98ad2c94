// Package artifact post-processes installed files: pkg-config metadata,
// config scripts, per-architecture headers and cmake import modules.
package artifact

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/zerr"
)

// LineFunc maps one line, including its trailing newline, to its replacement.
// Returning an empty string drops the line.
type LineFunc func(line string) string

// UpdateTextFile rewrites the file at path line by line.
func UpdateTextFile(path string, fn LineFunc) error {
	info, err := os.Stat(path)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", path)
	}

	// #nosec G304 -- path points into an install tree
	data, err := os.ReadFile(path)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", path)
	}

	var b strings.Builder
	b.Grow(len(data))
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if line == "" {
			continue
		}
		b.WriteString(fn(line))
	}

	if err := os.WriteFile(path, []byte(b.String()), info.Mode().Perm()); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", path)
	}
	return nil
}

// variableRewriter makes the prefix variables of a pc file or config script relocatable.
func variableRewriter(prefix string, quoted bool, next LineFunc) LineFunc {
	quote := func(v string) string {
		if quoted {
			return `"` + v + `"`
		}
		return v
	}

	return func(line string) string {
		switch {
		case strings.HasPrefix(line, "prefix="):
			line = "prefix=" + quote(prefix) + "\n"
		case strings.HasPrefix(line, "exec_prefix="):
			line = "exec_prefix=" + quote("${prefix}") + "\n"
		case strings.HasPrefix(line, "includedir="):
			line = "includedir=" + quote("${prefix}/include") + "\n"
		case strings.HasPrefix(line, "libdir="):
			line = "libdir=" + quote("${exec_prefix}/lib") + "\n"
		}
		if next != nil {
			line = next(line)
		}
		return line
	}
}

// RewritePCFile empties prefix= so the .pc file resolves relative to its
// own location and, when libs is set, replaces the Libs: line.
func RewritePCFile(path, libs string) error {
	var next LineFunc
	if libs != "" {
		next = func(line string) string {
			if strings.HasPrefix(line, "Libs:") {
				return "Libs: " + libs + "\n"
			}
			return line
		}
	}
	return UpdateTextFile(path, variableRewriter("", false, next))
}

// RewritePCFiles rewrites every .pc file below root. libs maps a file's base
// name without extension to its Libs: override.
func RewritePCFiles(root string, libs map[string]string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".pc") {
			return nil
		}
		return RewritePCFile(path, libs[strings.TrimSuffix(d.Name(), ".pc")])
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to rewrite pkg-config files"), "root", root)
	}
	return nil
}

// RewriteConfigScript makes a *-config shell script resolve the prefix from its own location.
func RewriteConfigScript(path string) error {
	return UpdateTextFile(path, variableRewriter(`$(cd "${0%/*}/.."; pwd)`, true, nil))
}
