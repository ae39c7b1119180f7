package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thruflo/conductor/internal/api"
)

var openCmd = &cobra.Command{
	Use:   "open <target>",
	Short: "Open a project folder or file on the backend host",
	Long: `Asks the backend to open one of the project's folders or files in the
host's default viewer.

Targets: ` + targetList() + `

Example:
  conductor open plan`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: targetNames(),
	RunE:      runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func targetNames() []string {
	var names []string
	for _, t := range api.OpenTargets() {
		names = append(names, string(t))
	}
	return names
}

func targetList() string {
	return strings.Join(targetNames(), ", ")
}

func runOpen(cmd *cobra.Command, args []string) error {
	target, err := api.ParseOpenTarget(args[0])
	if err != nil {
		return err
	}
	if err := newAPIClient().Open(cmd.Context(), target); err != nil {
		return fmt.Errorf("failed to open %s: %s", target, api.UserMessage(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Opened %s.\n", target)
	return nil
}
