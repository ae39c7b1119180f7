package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thruflo/conductor/internal/session"
	"github.com/thruflo/conductor/internal/workflow"
)

var (
	actYes          bool
	actName         string
	actDescription  string
	actModel        string
	actNoReferences bool
)

var actCmd = &cobra.Command{
	Use:   "act",
	Short: "Run the primary action for the current state",
	Long: `Runs whatever the dashboard's primary button would do right now:

  reset, configured   save the project form and generate a plan
  plan_questions      refine the plan once the questions file is answered
  planned             execute the plan
  questions           submit the current answers and continue
  complete            start a new project (asks first)
  error               retry

Project fields can be set in the same call before planning starts.

Example:
  conductor act --name "Atlas" --description "Map every office" --no-references
  conductor act
  conductor act --yes`,
	Args: cobra.NoArgs,
	RunE: runAct,
}

func init() {
	actCmd.Flags().BoolVarP(&actYes, "yes", "y", false, "Answer yes to confirmations")
	actCmd.Flags().StringVar(&actName, "name", "", "Project name")
	actCmd.Flags().StringVar(&actDescription, "description", "", "Project description")
	actCmd.Flags().StringVar(&actModel, "model", "", "Default model")
	actCmd.Flags().BoolVar(&actNoReferences, "no-references", false, "Proceed without reference files")
	rootCmd.AddCommand(actCmd)
}

func runAct(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sess, err := startSession(cmd, actYes)
	if err != nil {
		return err
	}
	defer sess.Close()

	flags := cmd.Flags()
	sess.UpdateConfig(func(cfg *workflow.ProjectConfig) {
		if flags.Changed("name") {
			cfg.ProjectName = strings.TrimSpace(actName)
		}
		if flags.Changed("description") {
			cfg.ProjectDescription = strings.TrimSpace(actDescription)
		}
		if flags.Changed("model") {
			cfg.DefaultModel = strings.TrimSpace(actModel)
		}
	})
	if actNoReferences {
		sess.SetNoReferenceFiles(true)
	}

	v := sess.View()
	label := v.ActionLabel()
	switch v.State.State {
	case workflow.StatePlanQuestions:
		err = sess.ContinueAfterPlanQuestions(ctx, false)
		label = "Refine Plan"
	case workflow.StateQuestions:
		if err := sess.LoadQuestions(ctx); err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}
		err = sess.PerformAction(ctx)
	default:
		err = sess.PerformAction(ctx)
	}

	v = sess.View()
	if errors.Is(err, session.ErrNotOfferable) {
		if reason := notOfferableReason(v); reason != "" {
			return fmt.Errorf("%s is not available: %s", label, reason)
		}
	}
	return reportAction(cmd, v, label, err)
}

// reportAction turns the outcome of a session operation into command output.
// Backend failures were already sent to the notifier.
func reportAction(cmd *cobra.Command, v session.View, label string, err error) error {
	out := cmd.OutOrStdout()
	switch {
	case err == nil:
		fmt.Fprintf(out, "%s: sent.\n", label)
		return nil
	case errors.Is(err, session.ErrDeclined):
		fmt.Fprintln(out, "Cancelled.")
		return nil
	case errors.Is(err, session.ErrNotOfferable):
		return fmt.Errorf("%s is not available in state %s", label, v.State.State)
	case errors.Is(err, session.ErrBusy):
		return errors.New("another action is still running")
	default:
		return fmt.Errorf("%s failed: %w", label, err)
	}
}

// notOfferableReason explains why the primary action is unavailable.
func notOfferableReason(v session.View) string {
	s := v.State.State
	switch {
	case v.Busy:
		return "another action is still running"
	case s.Busy():
		return "the backend is still " + strings.TrimSuffix(strings.ToLower(v.StatusTitle()), "...")
	case s == workflow.StateReset || s == workflow.StateConfigured:
		var missing []string
		if strings.TrimSpace(v.Config.ProjectName) == "" {
			missing = append(missing, "--name")
		}
		if strings.TrimSpace(v.Config.ProjectDescription) == "" {
			missing = append(missing, "--description")
		}
		if len(v.References) == 0 && !v.NoReferenceFiles {
			missing = append(missing, "reference files (conductor upload) or --no-references")
		}
		if len(missing) > 0 {
			return "set " + strings.Join(missing, ", ")
		}
	}
	return ""
}
