package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/zerr"
)

const pcTemplate = `prefix=
exec_prefix=${prefix}
libdir=${exec_prefix}/lib
includedir=${prefix}/include

Name: %s
Description: %s
Version: %s
Requires: %s
Requires.private: %s
Libs: -L${libdir} %s
Libs.private: %s
Cflags: -I${includedir} %s
`

// WritePCFile generates install/lib/pkgconfig/<file> for a library that ships no pkg-config file.
// Name and description default to target, the file to <target>.pc and libs to -l<target>.
func WritePCFile(install, target string, pc domain.PCFile) error {
	if pc.File == "" {
		pc.File = target + ".pc"
	}
	if pc.Name == "" {
		pc.Name = target
	}
	if pc.Description == "" {
		pc.Description = target
	}
	if pc.Libs == "" {
		pc.Libs = "-l" + target
	}

	dir := filepath.Join(install, "lib", "pkgconfig")
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", dir)
	}

	content := fmt.Sprintf(pcTemplate,
		pc.Name, pc.Description, pc.Version,
		pc.Requires, pc.RequiresPrivate,
		pc.Libs, pc.LibsPrivate, pc.Cflags)

	path := filepath.Join(dir, pc.File)
	if err := os.WriteFile(path, []byte(content), domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrArtifactFailed, err.Error()), "path", path)
	}
	return nil
}
