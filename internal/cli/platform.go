package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luhtfiimanal/go-native-serial/nativelib"
	"github.com/luhtfiimanal/go-native-serial/platform"
)

// PlatformInfo describes where the native library is expected on a host.
type PlatformInfo struct {
	OS       string `json:"os" yaml:"os"`
	Arch     string `json:"arch" yaml:"arch"`
	Tag      string `json:"tag" yaml:"tag"`
	Folder   string `json:"folder" yaml:"folder"`
	Library  string `json:"library" yaml:"library"`
	Resource string `json:"resource" yaml:"resource"`
	Path     string `json:"path" yaml:"path"`
}

func describePlatform(osName, arch string, tag platform.Tag, rootDir string) (PlatformInfo, error) {
	info := PlatformInfo{
		OS:      osName,
		Arch:    arch,
		Tag:     tag.String(),
		Library: nativelib.LibraryFileName(tag.OS, nativelib.LibraryName),
	}
	loc, err := nativelib.Locate(tag, nativelib.LibraryName, rootDir)
	if err != nil {
		return info, err
	}
	info.Folder = loc.Folder
	info.Resource = loc.Resource
	info.Path = loc.Path
	return info, nil
}

var (
	platformOS   string
	platformArch string
)

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Show the platform tag and where the native library is looked for",
	RunE: func(cmd *cobra.Command, args []string) error {
		osName, arch := platform.HostNames()
		tag := platform.Host()
		if platformOS != "" || platformArch != "" {
			if platformOS != "" {
				osName = platformOS
			}
			if platformArch != "" {
				arch = platformArch
			}
			tag = platform.Identify(osName, arch, platform.SystemProbe())
		}
		info, err := describePlatform(osName, arch, tag, nativelib.DefaultRootDir())
		if err != nil {
			return fmt.Errorf("no native library for %s/%s: %w", osName, arch, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(info))
		return nil
	},
}

func init() {
	platformCmd.Flags().StringVar(&platformOS, "os", "", "identify this OS name instead of the host's (e.g. \"Mac OS X\")")
	platformCmd.Flags().StringVar(&platformArch, "arch", "", "identify this architecture instead of the host's (e.g. \"aarch64\")")
	rootCmd.AddCommand(platformCmd)
}
