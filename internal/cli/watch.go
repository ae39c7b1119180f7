package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/conductor/internal/session"
	"github.com/thruflo/conductor/internal/workflow"
)

var watchUntilDone bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow workflow updates as they are pushed",
	Long: `Subscribes to the backend's update stream and prints a line whenever
the state, phase, activity or connection changes. Reconnects with backoff
and exits with an error once the reconnect ceiling is reached.

Example:
  conductor watch
  conductor watch --until-done`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchUntilDone, "until-done", false, "Exit when the workflow completes or fails")
	rootCmd.AddCommand(watchCmd)
}

// watchPrinter prints a line for each distinct view.
type watchPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	now  func() time.Time
	last string
}

func (p *watchPrinter) print(v session.View) {
	line := watchLine(v)

	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintf(p.out, "%s  %s\n", p.now().Format("15:04:05"), line)
}

func watchLine(v session.View) string {
	s := v.State
	line := fmt.Sprintf("%-14s", s.State)
	if s.TotalPhases > 0 {
		line += " [" + v.PhaseLabel() + "]"
	}
	if s.Activity != "" {
		line += " " + s.Activity
	}
	if s.Error != nil && *s.Error != "" {
		line += " (error: " + *s.Error + ")"
	}
	if s.Stalled {
		line += " (stalled)"
	}
	switch c := v.Connection; {
	case c.Connected:
	case c.ReconnectAttempts > 0:
		line += fmt.Sprintf(" [reconnecting %d]", c.ReconnectAttempts)
	default:
		line += " [offline]"
	}
	return line
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	ceiling := currentConfig().Channel.MaxReconnectAttempts

	sess := newSession(true, session.WithNotifier(writerNotifier{w: cmd.ErrOrStderr()}))
	defer sess.Close()

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	p := &watchPrinter{out: cmd.OutOrStdout(), now: time.Now}
	sess.OnChange(func(v session.View) {
		p.print(v)
		switch s := v.State.State; {
		case !v.Connection.Connected && v.Connection.ReconnectAttempts > ceiling:
			finish(fmt.Errorf("update channel gave up after %d reconnect attempts", ceiling))
		case watchUntilDone && (s == workflow.StateComplete || s == workflow.StateError):
			finish(nil)
		}
	})

	if err := sess.Start(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Initial fetch failed; waiting for the update stream.")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}
