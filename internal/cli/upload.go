package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/refwatch"
	"github.com/thruflo/conductor/internal/session"
)

var uploadWatch string

var uploadCmd = &cobra.Command{
	Use:   "upload [file ...]",
	Short: "Upload reference files for the project",
	Long: `Uploads local files into the project's reference folder on the backend.

With --watch, keeps running and uploads every file created or modified in
the given directory until interrupted.

Example:
  conductor upload brief.pdf designs.png
  conductor upload --watch ./references`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadWatch, "watch", "w", "", "Directory to watch for new reference files")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && uploadWatch == "" {
		return errors.New("no files given (pass files or --watch DIR)")
	}
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot upload %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("cannot upload %s: is a directory", path)
		}
	}

	sess, err := startSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	if len(args) > 0 {
		if err := uploadFiles(cmd.Context(), cmd, sess, args); err != nil {
			return err
		}
	}
	if uploadWatch == "" {
		return nil
	}

	info, err := os.Stat(uploadWatch)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", uploadWatch, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot watch %s: not a directory", uploadWatch)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for reference files (Ctrl+C to stop)\n", uploadWatch)
	w := refwatch.New(uploadWatch,
		func(ctx context.Context, paths []string) error {
			return uploadFiles(ctx, cmd, sess, paths)
		},
		refwatch.WithDebounce(currentConfig().Watch.Debounce),
		refwatch.WithLogger(logging.Default().With("component", "refwatch")),
	)
	return w.Run(cmd.Context())
}

func uploadFiles(ctx context.Context, cmd *cobra.Command, sess *session.Client, paths []string) error {
	res, err := sess.UploadReferenceFiles(ctx, paths)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, name := range res.Files {
		fmt.Fprintf(out, "Uploaded %s\n", name)
	}
	return nil
}
