package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/luhtfiimanal/go-native-serial"
)

var (
	readCount     int
	readDelimiter string
	readTimeout   time.Duration
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Print lines received on a serial port",
	Long: `Print delimiter-terminated lines from the port until --count lines were
read, --timeout expires, or the command is interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStream()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if readTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, readTimeout)
			defer cancel()
		}
		// Closing the stream is the only way to release a blocked read
		go func() {
			<-ctx.Done()
			s.Close()
		}()

		delim := cfg.Delimiter
		if readDelimiter != "" {
			delim = readDelimiter
		}
		lines := s.Lines(delim)
		for n := 0; readCount <= 0 || n < readCount; n++ {
			line, err := lines.ReadLine()
			if errors.Is(err, serial.ErrStreamClosed) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read from %s: %w", s.Name(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	readCmd.Flags().IntVarP(&readCount, "count", "n", 0, "stop after this many lines (0 reads until interrupted)")
	readCmd.Flags().StringVar(&readDelimiter, "delimiter", "", "line delimiter (default from config, \"\\r\\n\")")
	readCmd.Flags().DurationVar(&readTimeout, "timeout", 0, "stop after this long")
	rootCmd.AddCommand(readCmd)
}
