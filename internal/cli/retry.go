package cli

import (
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry after an error",
	Args:  cobra.NoArgs,
	RunE:  runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, _ []string) error {
	sess, err := startSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	err = sess.Retry(cmd.Context())
	return reportAction(cmd, sess.View(), "Retry", err)
}
