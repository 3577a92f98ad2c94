package artifact

import (
	"os"
	"path/filepath"
	"regexp"

	"go.trai.ch/zerr"
)

var importCheckPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^list\s*\(APPEND\s+_IMPORT_CHECK_TARGETS\s+(\w+::\w+)[\s)]`),
	regexp.MustCompile(`(?i)^list\s*\(APPEND\s+_IMPORT_CHECK_FILES_FOR_(\w+::\w+)\s`),
}

// KeepModuleTarget drops the import checks of every target but keep from the
// release targets file of a cmake package. Packages such as WebP install
// several imported targets of which only one is built.
func KeepModuleTarget(install, module, keep string) error {
	const suffix = "targets-release.cmake"

	// Install trees on case-sensitive file systems keep cmake's capitalization.
	for _, name := range []string{suffix, module + suffix, module + "Targets-release.cmake"} {
		path := filepath.Join(install, "lib", "cmake", module, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		err := UpdateTextFile(path, func(line string) string {
			for _, re := range importCheckPatterns {
				if m := re.FindStringSubmatch(line); m != nil && m[1] != keep {
					return ""
				}
			}
			return line
		})
		if err != nil {
			return zerr.With(err, "module", module)
		}
	}
	return nil
}
