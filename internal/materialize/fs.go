package materialize

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/awsm-dev/awsm/internal/errdef"
)

// FileSystem is how form-data file items are read.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
}

type OSFileSystem struct{}

func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// readFile resolves relative paths against baseDir first and then tries the
// path as given.
func readFile(fsys FileSystem, path, baseDir string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errdef.New(errdef.CodeFilesystem, "form file path is empty")
	}
	candidates := []string{path}
	if !filepath.IsAbs(path) && baseDir != "" {
		candidates = []string{filepath.Join(baseDir, path), path}
	}

	var lastErr error
	for _, candidate := range candidates {
		data, err := fsys.ReadFile(candidate)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, errdef.Wrap(errdef.CodeFilesystem, lastErr, "read form file %s", path)
}
