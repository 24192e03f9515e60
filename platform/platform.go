// Package platform identifies the host platform the way the native binary
// layout expects it: operating system, architecture width and, on 32-bit ARM,
// the floating point calling convention.
package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// OS is the operating system family of a Tag.
type OS int

const (
	Unknown OS = iota
	Linux
	Windows
	Solaris
	MacOS
)

func (o OS) String() string {
	switch o {
	case Linux:
		return "linux"
	case Windows:
		return "windows"
	case Solaris:
		return "solaris"
	case MacOS:
		return "osx"
	default:
		return "unknown"
	}
}

// Arch is the CPU family of a Tag.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86
	ArchARM
)

// ABI is the float calling convention on 32-bit ARM.
type ABI int

const (
	ABINone ABI = iota
	SoftFloat
	HardFloat
)

func (a ABI) String() string {
	switch a {
	case SoftFloat:
		return "sf"
	case HardFloat:
		return "hf"
	default:
		return ""
	}
}

// ErrUnsupportedPlatform is returned when no binary variant exists for a Tag.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Tag is the canonical platform identity used to pick a native binary.
type Tag struct {
	OS           OS
	Arch         Arch
	Width        int // 32 or 64, 0 when unknown
	ABI          ABI
	AppleSilicon bool
}

// Folder returns the per-platform subfolder holding the binary variant,
// e.g. "linux_64", "osx_arm64" or "linux_armhf".
func (t Tag) Folder() (string, error) {
	if t.OS == Unknown || t.Arch == ArchUnknown || t.Width == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, t)
	}
	if t.OS == MacOS {
		if t.AppleSilicon {
			return "osx_arm64", nil
		}
		return "osx_64", nil
	}
	if t.Arch == ArchARM {
		if t.Width == 64 {
			return t.OS.String() + "_arm64", nil
		}
		return t.OS.String() + "_arm" + t.ABI.String(), nil
	}
	return fmt.Sprintf("%s_%d", t.OS, t.Width), nil
}

func (t Tag) String() string {
	arch := "unknown"
	switch t.Arch {
	case ArchX86:
		arch = "x86"
	case ArchARM:
		arch = "arm" + t.ABI.String()
	}
	return fmt.Sprintf("%s/%s/%d", t.OS, arch, t.Width)
}

// Identify maps host-reported OS and architecture names to a Tag.
// The result only depends on its inputs and on what probe reports.
func Identify(osName, arch string, probe Probe) Tag {
	var t Tag
	switch {
	case osName == "Linux":
		t.OS = Linux
	case strings.HasPrefix(osName, "Win"):
		t.OS = Windows
	case osName == "SunOS":
		t.OS = Solaris
	case osName == "Mac OS X" || osName == "Darwin":
		t.OS = MacOS
	}

	switch arch {
	case "i386", "i686", "x86":
		t.Arch, t.Width = ArchX86, 32
	case "amd64", "x86_64", "universal":
		t.Arch, t.Width = ArchX86, 64
	case "arm":
		t.Arch, t.Width = ArchARM, 32
		t.ABI = FloatABI(probe)
	case "aarch64", "arm64":
		t.Arch, t.Width = ArchARM, 64
	}
	t.AppleSilicon = t.OS == MacOS && t.Arch == ArchARM
	return t
}

var host = sync.OnceValue(func() Tag {
	osName, arch := HostNames()
	return Identify(osName, arch, SystemProbe())
})

// Host returns the Tag of the running process. It is computed once.
func Host() Tag {
	return host()
}

// HostNames translates runtime.GOOS and runtime.GOARCH into the names an
// operating system reports for itself.
func HostNames() (osName, arch string) {
	switch runtime.GOOS {
	case "linux", "android":
		osName = "Linux"
	case "windows":
		osName = "Windows"
	case "darwin", "ios":
		osName = "Darwin"
	case "solaris", "illumos":
		osName = "SunOS"
	default:
		osName = runtime.GOOS
	}
	switch runtime.GOARCH {
	case "386":
		arch = "i386"
	case "arm64":
		arch = "aarch64"
	default:
		arch = runtime.GOARCH
	}
	return osName, arch
}
