// Package cli implements the serialctl commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	serial "github.com/luhtfiimanal/go-native-serial"
	"github.com/luhtfiimanal/go-native-serial/driver"
	"github.com/luhtfiimanal/go-native-serial/internal/output"
	"github.com/luhtfiimanal/go-native-serial/nativelib"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	driverName   string
	logLevel     string
	portName     string
	baudRate     int

	// Shared state set during PersistentPreRun
	cfg       *Config
	log       *zap.Logger
	formatter output.Formatter

	// injected replaces the configured driver when set
	injected driver.Driver
)

// rootCmd is the base command for serialctl.
var rootCmd = &cobra.Command{
	Use:   "serialctl",
	Short: "Talk to serial devices from the shell",
	Long: `serialctl exercises the serial stack from the shell. It reports how the
native library would be located on this host, lists serial ports, and
sends or reads data through either the native library or the pure-Go
termios driver.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		path := cfgFile
		if path == "" {
			path = DefaultConfigPath()
		}
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		if outputFormat != "" {
			cfg.OutputFormat = outputFormat
		}
		if driverName != "" {
			cfg.Driver = driverName
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if portName != "" {
			cfg.Port = portName
		}
		if baudRate > 0 {
			cfg.Baud = baudRate
		}

		log, err = newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		serial.SetLogger(log)
		nativelib.SetLogger(log)

		formatter = output.NewFormatter(cfg.OutputFormat)
		return nil
	},
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = lvl
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// SetDriver makes every command use d instead of the configured driver.
// Tests use it to run commands against serialtest.
func SetDriver(d driver.Driver) {
	injected = d
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

// openDriver returns the driver named by the configuration.
func openDriver() (driver.Driver, error) {
	if injected != nil {
		return injected, nil
	}
	switch cfg.Driver {
	case "", "native":
		if cfg.BootLibraryPath == "" {
			return nativelib.Default().Driver()
		}
		opts := nativelib.DefaultOptions()
		opts.BootPath = cfg.BootLibraryPath
		return nativelib.NewLoader(opts).Driver()
	case "termios":
		return termiosDriver()
	default:
		return nil, fmt.Errorf("unknown driver %q (want native or termios)", cfg.Driver)
	}
}

// openStream opens the configured port as a stream.
func openStream() (*serial.Stream, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("no port given: use --port or set port in the config file")
	}
	drv, err := openDriver()
	if err != nil {
		return nil, err
	}
	return serial.OpenStream(cfg.Port, cfg.Baud, serial.WithDriver(drv))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/serialctl/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml (default \"table\")")
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", "", "serial driver: native or termios (default \"native\")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default \"warn\")")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "serial port, e.g. /dev/ttyUSB0 or COM3")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "baud rate (default 9600)")
}
