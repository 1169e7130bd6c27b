package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/crdash/internal/client"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the session's files as a zip archive",
	RunE:  runDownload,
}

func init() {
	downloadCmd.Flags().String("session", "", "backend session")
	downloadCmd.Flags().StringP("output", "o", "", "archive path (default <session>.zip)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	sessionID, err := requireSession(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		path = sessionID + ".zip"
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	n, err := newClient().DownloadZip(cmd.Context(), sessionID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("downloading: %s", client.UserMessage(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", path, humanize.Bytes(uint64(n)))
	return nil
}
