package cli

import (
	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Archive the current project and start a new one",
	Long: `Archives the current project on the backend and returns the workflow to
its initial state. The local project form is cleared.

Not available while the backend is planning or executing.

Example:
  conductor reset
  conductor reset --yes`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	sess, err := startSession(cmd, resetYes)
	if err != nil {
		return err
	}
	defer sess.Close()

	err = sess.ResetProject(cmd.Context())
	return reportAction(cmd, sess.View(), "Reset", err)
}
