package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-native-serial/driver"
	"github.com/luhtfiimanal/go-native-serial/nativelib"
	"github.com/luhtfiimanal/go-native-serial/serialtest"
)

func setupTest(t *testing.T, d driver.Driver) {
	t.Helper()
	cfgFile, outputFormat, driverName, logLevel, portName, baudRate = "", "", "", "", "", 0
	platformOS, platformArch = "", ""
	sendNewline, sendHex = "\r\n", false
	readCount, readDelimiter, readTimeout = 0, "", 0
	// Keep the user's own config file out of the tests
	cfgFile = filepath.Join(t.TempDir(), "none.yaml")
	SetDriver(d)
	t.Cleanup(func() { SetDriver(nil) })
}

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root := RootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	setupTest(t, serialtest.New("2.9.4-custom"))

	out, err := executeCommand("version", "-o", "json")
	require.NoError(t, err)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Equal(t, "2.9.4", info.Declared)
	require.Equal(t, "2.9.4-custom", info.Driver)
	require.True(t, info.Compatible)

	setupTest(t, serialtest.New("1.0.0"))
	out, err = executeCommand("version")
	require.NoError(t, err)
	require.Contains(t, out, "1.0.0")
	require.Regexp(t, `Compatible:\s+false`, out)
}

func TestPlatformCommand(t *testing.T) {
	setupTest(t, nil)

	out, err := executeCommand("platform", "--os", "Linux", "--arch", "amd64", "-o", "json")
	require.NoError(t, err)

	var info PlatformInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Equal(t, "linux_64", info.Folder)
	require.Equal(t, "libnativeserial.so", info.Library)
	require.Equal(t, "natives/linux_64/libnativeserial.so", info.Resource)

	out, err = executeCommand("platform", "--os", "Mac OS X", "--arch", "aarch64", "-o", "yaml")
	require.NoError(t, err)
	require.Contains(t, out, "folder: osx_arm64")
	require.Contains(t, out, "library: libnativeserial.dylib")
}

func TestPlatformCommand_Unsupported(t *testing.T) {
	setupTest(t, nil)

	_, err := executeCommand("platform", "--os", "Plan9", "--arch", "amd64")
	require.ErrorContains(t, err, "unsupported platform")
}

func TestSendCommand(t *testing.T) {
	drv := serialtest.New("2.9.4")
	setupTest(t, drv)

	out, err := executeCommand("send", "--port", "COM_TEST", "C,INFO", "now")
	require.NoError(t, err)
	require.Contains(t, out, "sent 12 bytes to COM_TEST")
	require.Equal(t, "C,INFO now\r\n", string(drv.Written()))
	require.Equal(t, 9600, drv.Params().BaudRate)
	require.Equal(t, 1, drv.CloseCalls())
}

func TestSendCommand_Hex(t *testing.T) {
	drv := serialtest.New("2.9.4")
	setupTest(t, drv)

	_, err := executeCommand("send", "-p", "COM_TEST", "-b", "115200", "--hex", "41", "420d")
	require.NoError(t, err)
	require.Equal(t, []byte{0x41, 0x42, 0x0d}, drv.Written())
	require.Equal(t, 115200, drv.Params().BaudRate)

	_, err = executeCommand("send", "-p", "COM_TEST", "--hex", "zz")
	require.ErrorContains(t, err, "invalid hex data")
}

func TestSendCommand_NoPort(t *testing.T) {
	setupTest(t, serialtest.New("2.9.4"))

	_, err := executeCommand("send", "hello")
	require.ErrorContains(t, err, "no port given")
}

func TestSendCommand_OpenFailure(t *testing.T) {
	drv := serialtest.New("2.9.4")
	drv.FailOpen("COM_BUSY", driver.ErrPortBusy)
	setupTest(t, drv)

	_, err := executeCommand("send", "-p", "COM_BUSY", "hello")
	require.ErrorIs(t, err, driver.ErrPortBusy)
}

func TestReadCommand(t *testing.T) {
	drv := serialtest.New("2.9.4")
	drv.Feed([]byte("one\r\ntwo\r\nthree\r\n")...)
	setupTest(t, drv)

	out, err := executeCommand("read", "--port", "COM_TEST", "-n", "2")
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\n", out)
	require.Equal(t, 1, drv.CloseCalls())
}

func TestReadCommand_Timeout(t *testing.T) {
	drv := serialtest.New("2.9.4")
	setupTest(t, drv)

	start := time.Now()
	out, err := executeCommand("read", "--port", "COM_TEST", "--timeout", "50ms")
	require.NoError(t, err)
	require.Empty(t, out)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, 1, drv.CloseCalls())
}

func TestConfigFile(t *testing.T) {
	drv := serialtest.New("2.9.4")
	drv.Feed([]byte("a;b;")...)
	setupTest(t, drv)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: COM_CFG\nbaud: 19200\ndelimiter: \";\"\nlog_level: error\n"), 0o600))

	out, err := executeCommand("read", "--config", path, "-n", "2")
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", out)
	require.Equal(t, 19200, drv.Params().BaudRate)
}

func TestConfigFile_Invalid(t *testing.T) {
	setupTest(t, nil)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baud: [not a number"), 0o600))

	_, err := executeCommand("version", "--config", path)
	require.ErrorContains(t, err, "failed to load config")
}

func TestUnknownDriver(t *testing.T) {
	setupTest(t, nil)

	_, err := executeCommand("version", "--driver", "bogus")
	require.ErrorContains(t, err, `unknown driver "bogus"`)
}

func TestInvalidLogLevel(t *testing.T) {
	setupTest(t, nil)

	_, err := executeCommand("version", "--log-level", "loud")
	require.ErrorContains(t, err, "invalid log level")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "native", cfg.Driver)
}

func TestOpenDriver_NativeSharesDefaultLoader(t *testing.T) {
	setupTest(t, nil)
	cfg = DefaultConfig()

	got, gotErr := openDriver()
	want, wantErr := nativelib.Default().Driver()
	require.Equal(t, want, got)
	if wantErr != nil {
		require.Same(t, wantErr, gotErr)
	}
	require.NotEqual(t, nativelib.Uninitialized, nativelib.Default().State())
}
