package nativelib

import (
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-native-serial/driver"
	"github.com/luhtfiimanal/go-native-serial/platform"
)

// LibraryName is the base name of the native library.
const LibraryName = "nativeserial"

// EnvBootLibraryPath names the environment variable holding an override
// directory for the native binary.
const EnvBootLibraryPath = "SERIAL_BOOT_LIBRARY_PATH"

// State is the lifecycle of a Loader.
type State int32

const (
	Uninitialized State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Options controls how a Loader finds the native library.
type Options struct {
	Name     string
	Version  string // declared version, compared after verified loads
	Platform platform.Tag
	BootPath string // override directory; ignored when it does not exist
	RootDir  string // extraction root
	Bundle   fs.FS  // holds natives/<folder>/<file>
	Linker   Linker
}

// DefaultOptions describes the process-wide bootstrap.
func DefaultOptions() Options {
	return Options{
		Name:     LibraryName,
		Version:  Version,
		Platform: platform.Host(),
		BootPath: os.Getenv(EnvBootLibraryPath),
		RootDir:  DefaultRootDir(),
		Bundle:   registeredBundle(),
		Linker:   dlLinker{},
	}
}

// Plan lists the strategies tried for opts, in order. The returned error
// explains why extraction is missing from the plan, if it is.
func Plan(opts Options) ([]Strategy, error) {
	plan := []Strategy{
		SystemPath{Name: LibraryFileName(opts.Platform.OS, opts.Name+"-"+opts.Version)},
		SystemPath{Name: LibraryFileName(opts.Platform.OS, opts.Name)},
	}
	if opts.BootPath != "" && exists(opts.BootPath) {
		return append(plan, BootPath{
			Dir:  opts.BootPath,
			File: LibraryFileName(opts.Platform.OS, opts.Name),
		}), nil
	}
	loc, err := Locate(opts.Platform, opts.Name, opts.RootDir)
	if err != nil {
		return plan, err
	}
	return append(plan, ExtractAndLoad{Location: loc, Bundle: opts.Bundle}), nil
}

// Loader runs the bootstrap at most once and caches its outcome.
type Loader struct {
	opts  Options
	once  sync.Once
	state atomic.Int32

	drv      driver.Driver
	versions VersionPair
	err      error
}

// NewLoader returns a Loader that has not run yet.
func NewLoader(opts Options) *Loader {
	if opts.Linker == nil {
		opts.Linker = dlLinker{}
	}
	return &Loader{opts: opts}
}

// EnsureLoaded runs the bootstrap on first use. Concurrent callers block
// until it completes and all observe the same result.
func (l *Loader) EnsureLoaded() (VersionPair, error) {
	l.once.Do(l.bootstrap)
	return l.versions, l.err
}

// Driver returns the loaded library, bootstrapping it if needed.
func (l *Loader) Driver() (driver.Driver, error) {
	l.once.Do(l.bootstrap)
	return l.drv, l.err
}

// State reports where the Loader is in its lifecycle.
func (l *Loader) State() State {
	return State(l.state.Load())
}

func (l *Loader) bootstrap() {
	l.state.Store(int32(Loading))
	defer func() {
		if r := recover(); r != nil {
			l.drv = nil
			l.err = &LinkError{Name: l.opts.Name, Attempts: []Attempt{{
				Strategy: "bootstrap",
				Err:      fmt.Errorf("panic: %v", r),
			}}}
		}
		if l.err != nil {
			l.state.Store(int32(Failed))
			return
		}
		l.state.Store(int32(Loaded))
	}()
	l.drv, l.versions, l.err = l.run()
}

func (l *Loader) run() (driver.Driver, VersionPair, error) {
	log := Logger()
	plan, planErr := Plan(l.opts)

	var attempts []Attempt
	for _, s := range plan {
		drv, err := s.load(l.opts.Linker)
		if err != nil {
			log.Debug("native library strategy failed",
				zap.Stringer("strategy", s),
				zap.Error(err))
			attempts = append(attempts, Attempt{Strategy: s.String(), Err: err})
			continue
		}

		versions := VersionPair{Declared: l.opts.Version}
		if s.verified() {
			versions = reconcile(Version, l.opts.Version, drv.NativeVersion())
		}
		log.Info("native library loaded",
			zap.Stringer("strategy", s),
			zap.String("declared", versions.Declared),
			zap.String("native", versions.Native))
		return drv, versions, nil
	}
	if planErr != nil {
		attempts = append(attempts, Attempt{Strategy: "locate", Err: planErr})
	}

	err := &LinkError{Name: l.opts.Name, Attempts: attempts}
	log.Error("native library unusable", zap.Error(err))
	return nil, VersionPair{Declared: l.opts.Version}, err
}

var (
	bundleMu sync.Mutex
	bundle   fs.FS
)

// RegisterBundle sets the filesystem holding bundled native binaries
// (typically an embed.FS). It must be called before the first bootstrap.
func RegisterBundle(fsys fs.FS) {
	bundleMu.Lock()
	defer bundleMu.Unlock()
	bundle = fsys
}

func registeredBundle() fs.FS {
	bundleMu.Lock()
	defer bundleMu.Unlock()
	return bundle
}

var defaultLoader = sync.OnceValue(func() *Loader {
	return NewLoader(DefaultOptions())
})

// Default returns the process-wide Loader.
func Default() *Loader {
	return defaultLoader()
}

// EnsureLoaded bootstraps the process-wide Loader.
func EnsureLoaded() (VersionPair, error) {
	return Default().EnsureLoaded()
}
