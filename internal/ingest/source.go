package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrSourceNotFound is returned when the reference document is not present at
// any candidate path. Retrieval stays disabled for the process lifetime; the
// advisor answers from the query alone.
var ErrSourceNotFound = errors.New("reference document not found")

// Locate resolves the reference document path. An explicit path wins when
// set; otherwise the fixed filename is searched in an ordered list of
// candidate directories relative to the binary's install location and the
// working directory. The first existing file wins.
func Locate(explicit, filename string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: configured path %s", ErrSourceNotFound, explicit)
		}
		return explicit, nil
	}

	var dirs []string
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		dirs = append(dirs, filepath.Join(exeDir, "docs"), exeDir)
	}
	dirs = append(dirs, "docs", ".")

	for _, dir := range dirs {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s not present in %d candidate locations", ErrSourceNotFound, filename, len(dirs))
}
