package nativelib

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

// Linker turns a library name or path into a bound driver.
// A bare file name is resolved through the system library search path.
type Linker interface {
	Link(nameOrPath string) (driver.Driver, error)
}

// LinkerFunc adapts a function to Linker.
type LinkerFunc func(nameOrPath string) (driver.Driver, error)

func (f LinkerFunc) Link(nameOrPath string) (driver.Driver, error) { return f(nameOrPath) }

// Strategy is one way of obtaining the native library. The concrete types
// are SystemPath, BootPath and ExtractAndLoad.
type Strategy interface {
	fmt.Stringer
	load(l Linker) (driver.Driver, error)
	// verified strategies compare declared and native versions after loading
	verified() bool
}

// SystemPath loads a library file name through the system search path.
type SystemPath struct {
	Name string
}

func (s SystemPath) String() string { return "system path " + s.Name }

func (s SystemPath) load(l Linker) (driver.Driver, error) {
	return l.Link(s.Name)
}

func (SystemPath) verified() bool { return false }

// BootPath loads the library from an explicit override directory.
type BootPath struct {
	Dir  string
	File string
}

func (s BootPath) String() string { return "boot path " + s.Dir }

func (s BootPath) load(l Linker) (driver.Driver, error) {
	target := filepath.Join(s.Dir, s.File)
	if !isFile(target) {
		return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, target)
	}
	return l.Link(target)
}

func (BootPath) verified() bool { return true }

// ExtractAndLoad copies a bundled binary to Location.Path and loads it.
// Without a bundled copy it loads whatever already sits at the target.
type ExtractAndLoad struct {
	Location Location
	Bundle   fs.FS
}

func (s ExtractAndLoad) String() string { return "extract " + s.Location.Resource }

func (s ExtractAndLoad) load(l Linker) (driver.Driver, error) {
	target := s.Location.Path
	data, err := s.bundled()
	switch {
	case err == nil:
		extracted, err := extractFile(target, data)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", s.Location.Resource, err)
		}
		Logger().Debug("native library extracted",
			zap.String("resource", s.Location.Resource),
			zap.String("path", target),
			zap.Bool("written", extracted))
	case errors.Is(err, fs.ErrNotExist):
		if !isFile(target) {
			return nil, fmt.Errorf("%w: no bundled %s and nothing at %s", ErrLibraryNotFound, s.Location.Resource, target)
		}
	default:
		return nil, fmt.Errorf("read bundled %s: %w", s.Location.Resource, err)
	}
	return l.Link(target)
}

func (ExtractAndLoad) verified() bool { return true }

func (s ExtractAndLoad) bundled() ([]byte, error) {
	if s.Bundle == nil {
		return nil, fs.ErrNotExist
	}
	return fs.ReadFile(s.Bundle, s.Location.Resource)
}

// extractFile writes data to target through a temp file and a rename, so a
// concurrent loader never sees a partial binary. An identical file already
// in place is left alone.
func extractFile(target string, data []byte) (bool, error) {
	if same, err := sameContent(target, data); err == nil && same {
		return false, nil
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	tmp, err := os.CreateTemp(dir, ".nativeserial-*")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return false, err
	}
	return true, nil
}

func sameContent(target string, data []byte) (bool, error) {
	existing, err := os.ReadFile(target)
	if err != nil {
		return false, err
	}
	if len(existing) != len(data) {
		return false, nil
	}
	return sha256.Sum256(existing) == sha256.Sum256(data), nil
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
