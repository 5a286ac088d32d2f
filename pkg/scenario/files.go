package scenario

import (
	"path/filepath"
	"strings"
)

// FileExt is the extension of scenario scripts.
const FileExt = ".test"

// FindFiles expands args into scenario files. Arguments ending in FileExt are
// taken as-is and anything else is treated as a directory searched with
// pattern. Without args, pattern is matched in the working directory.
func FindFiles(pattern string, args []string) ([]string, error) {
	if len(args) == 0 {
		return filepath.Glob(pattern)
	}

	var files []string
	for _, arg := range args {
		if strings.HasSuffix(arg, FileExt) {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}
