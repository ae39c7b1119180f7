package cli

import (
	"github.com/spf13/cobra"
)

var archiveYes bool

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move all reference files into the archive folder",
	Args:  cobra.NoArgs,
	RunE:  runArchive,
}

func init() {
	archiveCmd.Flags().BoolVarP(&archiveYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, _ []string) error {
	sess, err := startSession(cmd, archiveYes)
	if err != nil {
		return err
	}
	defer sess.Close()

	err = sess.ArchiveReferenceFiles(cmd.Context())
	return reportAction(cmd, sess.View(), "Archive reference files", err)
}
