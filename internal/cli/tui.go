package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/session"
	"github.com/thruflo/conductor/internal/tui"
)

var (
	tuiLogFile string
	tuiNoBell  bool
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive dashboard",
	Long: `Opens a full-screen dashboard that follows the workflow live and runs
actions from the keyboard. Press ? for the key bindings.

Logs are discarded while the dashboard owns the terminal unless --log-file
is given.

Example:
  conductor tui
  conductor tui --log-file conductor.log`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "Write logs to this file")
	tuiCmd.Flags().BoolVar(&tuiNoBell, "no-bell", false, "Do not ring the bell when the workflow needs attention")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	var logOut io.Writer = io.Discard
	if tuiLogFile != "" {
		f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logging.Default().SetWriter(logOut)
	defer logging.Default().SetWriter(os.Stderr)

	bridge := tui.NewBridge(logging.Default().With("component", "tui"))
	sess := newSession(true,
		session.WithConfirmer(bridge),
		session.WithNotifier(bridge),
	)
	defer sess.Close()

	var opts []tui.Option
	if !tuiNoBell {
		opts = append(opts, tui.WithAlerts(tui.NewNotifier(cmd.ErrOrStderr())))
	}
	return tui.Run(cmd.Context(), sess, bridge, opts...)
}
