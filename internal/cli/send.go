package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sendNewline string
	sendHex     bool
)

var sendCmd = &cobra.Command{
	Use:   "send <data>...",
	Short: "Write data to a serial port",
	Long: `Write the arguments, joined by spaces, to the port followed by --newline.
With --hex the arguments are hex encoded bytes, e.g. "41 42 0d".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload []byte
		if sendHex {
			b, err := hex.DecodeString(strings.Join(args, ""))
			if err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
			payload = b
		} else {
			payload = []byte(strings.Join(args, " ") + sendNewline)
		}

		s, err := openStream()
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := s.Write(payload); err != nil {
			return fmt.Errorf("write to %s: %w", s.Name(), err)
		}
		log.Debug("sent", zap.String("port", s.Name()), zap.Int("bytes", len(payload)))
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes to %s\n", len(payload), s.Name())
		return s.Close()
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendNewline, "newline", "\r\n", "appended to text data")
	sendCmd.Flags().BoolVar(&sendHex, "hex", false, "arguments are hex encoded bytes")
	rootCmd.AddCommand(sendCmd)
}
