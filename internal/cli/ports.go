package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	serial "github.com/luhtfiimanal/go-native-serial"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports present on this host",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serial.ListPorts()
		if err != nil {
			return fmt.Errorf("failed to list ports: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(ports))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
