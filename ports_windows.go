//go:build windows

package serial

import (
	"sort"

	"golang.org/x/sys/windows/registry"

	"github.com/luhtfiimanal/go-native-serial/platform"
)

const serialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`

// listPorts reads the COM port names Windows publishes in the registry.
func listPorts(_ platform.OS, _ []string) ([]string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, serialCommKey, registry.QUERY_VALUE)
	if err != nil {
		// The key only exists while at least one port is present
		if err == registry.ErrNotExist {
			return []string{}, nil
		}
		return nil, err
	}
	defer k.Close()

	names, err := k.ReadValueNames(0)
	if err != nil {
		return nil, err
	}
	ports := make([]string, 0, len(names))
	for _, name := range names {
		port, _, err := k.GetStringValue(name)
		if err != nil {
			continue
		}
		ports = append(ports, port)
	}
	sort.Strings(ports)
	return ports, nil
}
