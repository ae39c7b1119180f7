package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Drive a plan-and-execute agent workflow from the terminal",
	Long: `Conductor mirrors a long-running plan-and-execute workflow hosted by a
local backend. It follows the backend's pushed state, shows progress and
liveness, and sends the operator's commands: generate a plan, execute it,
answer questions, cancel, retry, and reset.

Run 'conductor tui' for the interactive dashboard, or use the individual
commands from scripts.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("conductor version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default: ./conductor.yaml or ~/.config/conductor/conductor.yaml)")
	pf.StringVar(&envFile, "env-file", ".env", "Env file loaded before reading config")
	pf.String("server", "", "Backend API base URL")
	pf.String("token", "", "Bearer token for the backend (- to prompt)")
	pf.Duration("timeout", 0, "Per-request timeout")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.Bool("trace", false, "Print request spans to stderr")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
