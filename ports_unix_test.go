//go:build !windows

package serial

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-native-serial/platform"
)

func TestScanPorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ttyUSB0", "ttyS1", "null", "ttyS", "myport3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ttyACM0"), 0o700))

	m, err := PortNameMatcher(platform.Linux, []string{"myport"})
	require.NoError(t, err)

	ports, err := scanPorts(dir+"/", m.MatchString)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "myport3"),
		filepath.Join(dir, "ttyS1"),
		filepath.Join(dir, "ttyUSB0"),
	}, ports)

	_, err = scanPorts(filepath.Join(dir, "missing"), m.MatchString)
	require.Error(t, err)
}

func TestListPorts_UnknownPlatform(t *testing.T) {
	_, err := listPorts(platform.Unknown, nil)
	require.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
}
