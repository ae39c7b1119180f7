package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thruflo/conductor/internal/workflow"
)

var answerCmd = &cobra.Command{
	Use:   "answer [N=answer ...]",
	Short: "Answer the agent's questions and continue execution",
	Long: `Submits answers to the questions the agent asked during execution, then
tells it to continue. Questions left unanswered are submitted as
"(No answer provided)".

With arguments, each N=answer pair answers question N. Without arguments,
each question is shown and its answer read from stdin.

Example:
  conductor answer 1="CSV only" 2="No SSO for now"
  conductor answer`,
	RunE: runAnswer,
}

func init() {
	rootCmd.AddCommand(answerCmd)
}

// parseAnswers parses N=answer pairs.
func parseAnswers(args []string) (map[int]string, error) {
	answers := make(map[int]string, len(args))
	for _, arg := range args {
		num, text, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid answer %q (want N=answer)", arg)
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid question number %q", num)
		}
		answers[n] = text
	}
	return answers, nil
}

func runAnswer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	answers, err := parseAnswers(args)
	if err != nil {
		return err
	}

	sess, err := startSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	if s := sess.View().State.State; s != workflow.StateQuestions {
		return fmt.Errorf("no questions are pending (state is %s)", s)
	}
	if err := sess.LoadQuestions(ctx); err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}
	questions := sess.View().Questions
	if len(questions) == 0 {
		return errors.New("the backend reported no questions")
	}

	if len(answers) == 0 {
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.ErrOrStderr()
		for _, q := range questions {
			fmt.Fprintf(out, "\n%d. [%s] %s\n> ", q.Number, q.Topic, q.Text)
			line, err := in.ReadString('\n')
			answers[q.Number] = strings.TrimSpace(line)
			if err != nil {
				fmt.Fprintln(out)
				break
			}
		}
	}

	for n, text := range answers {
		if !sess.SetAnswer(n, text) {
			return fmt.Errorf("question %d does not exist", n)
		}
	}

	err = sess.PerformAction(ctx)
	return reportAction(cmd, sess.View(), "Submit Answers", err)
}
