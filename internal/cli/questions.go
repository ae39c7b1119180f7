package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/thruflo/conductor/internal/workflow"
)

var (
	questionsPlain bool
	questionsWidth int
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Show the questions the agent is waiting on",
	Long: `Lists the questions the agent asked during execution, rendered as
markdown. Answer them with 'conductor answer'.

Example:
  conductor questions
  conductor questions --plain`,
	Args: cobra.NoArgs,
	RunE: runQuestions,
}

func init() {
	questionsCmd.Flags().BoolVar(&questionsPlain, "plain", false, "Print markdown without rendering")
	questionsCmd.Flags().IntVar(&questionsWidth, "width", 80, "Wrap width for rendered output")
	rootCmd.AddCommand(questionsCmd)
}

func runQuestions(cmd *cobra.Command, _ []string) error {
	set, err := newAPIClient().GetQuestions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}

	md := questionsMarkdown(set.Questions)
	if questionsPlain {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(questionsWidth),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render questions: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func questionsMarkdown(questions []workflow.Question) string {
	if len(questions) == 0 {
		return "No questions are pending.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Questions (%d)\n\n", len(questions))
	for _, q := range questions {
		fmt.Fprintf(&b, "## %d. %s\n\n%s\n\n", q.Number, q.Topic, strings.TrimSpace(q.Text))
		if a := strings.TrimSpace(q.Answer); a != "" {
			fmt.Fprintf(&b, "> %s\n\n", a)
		}
	}
	b.WriteString("Answer with `conductor answer N=\"...\"`.\n")
	return b.String()
}
