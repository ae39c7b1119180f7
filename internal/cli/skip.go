package cli

import (
	"github.com/spf13/cobra"

	"github.com/thruflo/conductor/internal/workflow"
)

var skipYes bool

var skipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Skip pending questions",
	Long: `Skips the questions the agent is waiting on. During planning the plan is
refined with the agent's own judgment; during execution the agent continues
with its assumptions.

Example:
  conductor skip --yes`,
	Args: cobra.NoArgs,
	RunE: runSkip,
}

func init() {
	skipCmd.Flags().BoolVarP(&skipYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(skipCmd)
}

func runSkip(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sess, err := startSession(cmd, skipYes)
	if err != nil {
		return err
	}
	defer sess.Close()

	if sess.View().State.State == workflow.StatePlanQuestions {
		err = sess.ContinueAfterPlanQuestions(ctx, true)
	} else {
		err = sess.SkipQuestions(ctx)
	}
	return reportAction(cmd, sess.View(), "Skip questions", err)
}
