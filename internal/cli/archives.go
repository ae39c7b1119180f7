package cli

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/thruflo/conductor/internal/workflow"
)

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List archived projects",
	Args:  cobra.NoArgs,
	RunE:  runArchives,
}

func init() {
	rootCmd.AddCommand(archivesCmd)
}

func runArchives(cmd *cobra.Command, _ []string) error {
	archives, err := newAPIClient().ListArchives(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}
	printArchives(cmd.OutOrStdout(), archives)
	return nil
}

func printArchives(w io.Writer, archives []workflow.Archive) {
	if len(archives) == 0 {
		fmt.Fprintln(w, "No archives found.")
		return
	}

	// Calculate column widths
	projectWidth := runewidth.StringWidth("PROJECT")
	dateWidth := len("DATE")
	for _, a := range archives {
		projectWidth = max(projectWidth, runewidth.StringWidth(a.Project))
		dateWidth = max(dateWidth, len(a.Date))
	}

	fmt.Fprintf(w, "%s  %s  %-8s  %s\n",
		runewidth.FillRight("PROJECT", projectWidth),
		runewidth.FillRight("DATE", dateWidth),
		"TIME", "NAME")
	for _, a := range archives {
		fmt.Fprintf(w, "%s  %s  %-8s  %s\n",
			runewidth.FillRight(a.Project, projectWidth),
			runewidth.FillRight(a.Date, dateWidth),
			a.Time, a.Name)
	}
}
