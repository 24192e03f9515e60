package nativelib

import (
	"os"
	"path"
	"path/filepath"

	"github.com/luhtfiimanal/go-native-serial/platform"
)

// LibraryFileName maps a library name to its platform file name.
func LibraryFileName(family platform.OS, name string) string {
	switch family {
	case platform.Windows:
		return name + ".dll"
	case platform.MacOS:
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// Location is where a platform's binary variant lives, both inside a
// bundle and on disk.
type Location struct {
	Folder   string // e.g. "linux_64"
	File     string // e.g. "libnativeserial.so"
	Resource string // slash separated path inside the bundle
	Path     string // extraction target on disk
}

// Dir returns the directory of the on-disk target.
func (l Location) Dir() string {
	return filepath.Dir(l.Path)
}

// Locate resolves the binary variant for tag under rootDir. It fails closed
// for platforms without a known variant.
func Locate(tag platform.Tag, name, rootDir string) (Location, error) {
	folder, err := tag.Folder()
	if err != nil {
		return Location{}, err
	}
	file := LibraryFileName(tag.OS, name)
	return Location{
		Folder:   folder,
		File:     file,
		Resource: path.Join("natives", folder, file),
		Path:     filepath.Join(rootDir, folder, file),
	}, nil
}

// DefaultRootDir returns the directory of the running executable, or the
// process temp directory when it cannot be resolved.
func DefaultRootDir() string {
	exe, err := os.Executable()
	if err != nil {
		return os.TempDir()
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
