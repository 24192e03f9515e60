package serial

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/luhtfiimanal/go-native-serial/platform"
)

const (
	linuxPortNames   = "(ttyS|ttyUSB|ttyACM|ttyAMA|rfcomm|ttyO|ttyM|ttyMXUSB|ttyMUE%s)[0-9]{1,3}"
	macPortNames     = `(tty|cu%s)\..*`
	solarisPortNames = "[0-9]*|[a-z]*"
	windowsPortNames = "COM[0-9]+"
)

// PortNamePattern returns the expression device names must match on the
// given OS. extra name prefixes are added as alternatives on Linux and
// macOS.
func PortNamePattern(family platform.OS, extra []string) string {
	var alt string
	for _, name := range extra {
		alt += "|" + regexp.QuoteMeta(name)
	}
	switch family {
	case platform.Linux:
		return fmt.Sprintf(linuxPortNames, alt)
	case platform.MacOS:
		return fmt.Sprintf(macPortNames, alt)
	case platform.Solaris:
		return solarisPortNames
	case platform.Windows:
		return windowsPortNames
	default:
		return ""
	}
}

// PortNameMatcher compiles PortNamePattern so it matches whole names.
func PortNameMatcher(family platform.OS, extra []string) (*regexp.Regexp, error) {
	pattern := PortNamePattern(family, extra)
	if pattern == "" {
		return nil, fmt.Errorf("port names for %s: %w", family, platform.ErrUnsupportedPlatform)
	}
	return regexp.Compile("^(?:" + pattern + ")$")
}

// portSearchDir is where device nodes live on each POSIX family.
func portSearchDir(family platform.OS) string {
	switch family {
	case platform.Solaris:
		return "/dev/term/"
	default:
		return "/dev/"
	}
}

// ListPorts returns the serial ports present on this host, sorted.
func ListPorts() ([]string, error) {
	return listPorts(platform.Host().OS, Env().PortNames)
}

func joinPortName(dir, name string) string {
	return strings.TrimSuffix(dir, "/") + "/" + name
}
