// core/source.go
package core

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSource supplies file contents to the Loader.
type FileSource interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
}

// OSFileSource reads from the local file system.
type OSFileSource struct{}

func (OSFileSource) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OSFileSource) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

// FSFileSource adapts an fs.FS (an embedded tree, fstest.MapFS, ...) to
// FileSource. Paths are cleaned and made relative to the root of FS.
type FSFileSource struct {
	FS fs.FS
}

func (s FSFileSource) ReadFile(path string) ([]byte, error) {
	return fs.ReadFile(s.FS, fsPath(path))
}

func (s FSFileSource) Stat(path string) (fs.FileInfo, error) {
	return fs.Stat(s.FS, fsPath(path))
}

func fsPath(path string) string {
	p := filepath.ToSlash(filepath.Clean(path))
	return strings.TrimPrefix(p, "/")
}

// ResolvePath resolves a survey data file path from a project file against
// the project's directory. Compass writes Windows separators, so '\' is
// accepted as a separator on every platform.
func ResolvePath(projectPath, filePath string) string {
	p := filepath.FromSlash(strings.ReplaceAll(filePath, `\`, "/"))
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(filepath.Dir(projectPath), p)
}
