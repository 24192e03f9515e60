package nativelib

import (
	"strings"

	"github.com/coreos/go-semver/semver"
	"go.uber.org/zap"
)

// Version is the native library release this package was built against.
const Version = "2.9.4"

// VersionPair holds the declared and loaded native versions.
// Checked is false when the library came from the system search path,
// which is trusted without a comparison.
type VersionPair struct {
	Declared string
	Native   string
	Checked  bool
}

// Compatible reports whether a native version may be used with the
// declared one: equal strings, or both sharing the Version baseline.
func Compatible(declared, native string) bool {
	return compatible(Version, declared, native)
}

func compatible(baseline, declared, native string) bool {
	if declared == native {
		return true
	}
	return strings.HasPrefix(declared, baseline) && strings.HasPrefix(native, baseline)
}

// reconcile compares versions and logs a mismatch. A mismatch never fails
// the load.
func reconcile(baseline, declared, native string) VersionPair {
	vp := VersionPair{Declared: declared, Native: native, Checked: true}
	if !compatible(baseline, declared, native) {
		Logger().Warn("native library version mismatch",
			zap.String("declared", declared),
			zap.String("native", native),
			zap.String("detail", mismatchDetail(declared, native)))
	}
	return vp
}

func mismatchDetail(declared, native string) string {
	d, err := semver.NewVersion(declared)
	if err != nil {
		return "declared version is not semver"
	}
	n, err := semver.NewVersion(native)
	if err != nil {
		return "native version is not semver"
	}
	switch {
	case n.LessThan(*d):
		return "native library is older"
	case d.LessThan(*n):
		return "native library is newer"
	default:
		return "same release, different build"
	}
}
