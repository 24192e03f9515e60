//go:build !windows

package serial

import (
	"os"
	"sort"

	"github.com/luhtfiimanal/go-native-serial/platform"
)

func listPorts(family platform.OS, extra []string) ([]string, error) {
	filter, err := PortNameMatcher(family, extra)
	if err != nil {
		return nil, err
	}
	dir := portSearchDir(family)
	return scanPorts(dir, filter.MatchString)
}

func scanPorts(dir string, match func(string) bool) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	ports := make([]string, 0, len(files))
	for _, f := range files {
		// Skip folders
		if f.IsDir() {
			continue
		}
		// Keep only devices with the correct name
		if !match(f.Name()) {
			continue
		}
		ports = append(ports, joinPortName(dir, f.Name()))
	}
	sort.Strings(ports)
	return ports, nil
}
