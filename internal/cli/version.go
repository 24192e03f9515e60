package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luhtfiimanal/go-native-serial/nativelib"
)

// version is set at build time via -ldflags "-X github.com/luhtfiimanal/go-native-serial/internal/cli.serialctlVersion=x.y.z"
var serialctlVersion = "0.1.0"

// VersionInfo compares the declared and loaded library versions.
type VersionInfo struct {
	Serialctl  string `json:"serialctl" yaml:"serialctl"`
	Declared   string `json:"declared" yaml:"declared"`
	Driver     string `json:"driver" yaml:"driver"`
	Compatible bool   `json:"compatible" yaml:"compatible"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show serialctl and serial driver versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		drv, err := openDriver()
		if err != nil {
			return fmt.Errorf("failed to load driver: %w", err)
		}
		native := drv.NativeVersion()
		info := VersionInfo{
			Serialctl:  serialctlVersion,
			Declared:   nativelib.Version,
			Driver:     native,
			Compatible: nativelib.Compatible(nativelib.Version, native),
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(info))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
