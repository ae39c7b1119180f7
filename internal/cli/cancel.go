package cli

import (
	"github.com/spf13/cobra"
)

var cancelYes bool

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the running planning or execution",
	Long: `Asks the backend to stop the operation in progress. Only available while
a plan is being generated or executed.

Example:
  conductor cancel
  conductor cancel --yes`,
	Args: cobra.NoArgs,
	RunE: runCancel,
}

func init() {
	cancelCmd.Flags().BoolVarP(&cancelYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, _ []string) error {
	sess, err := startSession(cmd, cancelYes)
	if err != nil {
		return err
	}
	defer sess.Close()

	err = sess.Cancel(cmd.Context())
	return reportAction(cmd, sess.View(), "Cancel", err)
}
