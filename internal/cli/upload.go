package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/crdash/internal/client"
	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file|dir>...",
	Short: "Upload code or requirement files to a backend session",
	Long: `Validate the files as one batch and upload them. The batch is all or
nothing: a single unsupported or oversized file rejects every file.
Without --session a new session is created and its ID printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().String("kind", string(model.KindCode), "file kind: code or srs")
	uploadCmd.Flags().String("session", "", "backend session (default: create one)")
	uploadCmd.Flags().Bool("validate", false, "ask the backend whether uploaded srs files are requirement documents")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	k, _ := cmd.Flags().GetString("kind")
	kind := model.FileKind(k)
	if kind != model.KindCode && kind != model.KindSRS {
		return fmt.Errorf("unknown kind %q (want code or srs)", k)
	}

	store := session.NewStore(logger)
	reg, err := registerLocal(ctx, store, args, kind)
	if err != nil {
		return err
	}

	c := newClient()
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		info, err := c.CreateSession(ctx)
		if err != nil {
			return fmt.Errorf("creating session: %s", client.UserMessage(err))
		}
		sessionID = info.ID
		fmt.Fprintf(out, "Created session %s\n", sessionID)
	}

	validate, _ := cmd.Flags().GetBool("validate")
	var total int64
	for _, adm := range reg.Admitted {
		data, err := adm.Source.Bytes()
		if err != nil {
			return fmt.Errorf("reading %s: %w", adm.File.Name, err)
		}
		ack, err := c.UploadFile(ctx, sessionID, adm.File, kind, data)
		if err != nil {
			return fmt.Errorf("uploading %s: %s", adm.File.Name, client.UserMessage(err))
		}
		total += int64(len(data))
		fmt.Fprintf(out, "  %-40s %8s  %s\n", adm.File.Name, humanize.Bytes(uint64(len(data))), ack.FileID)

		if validate && kind == model.KindSRS {
			v, err := c.ValidateSRS(ctx, ack.FileID)
			if err != nil {
				return fmt.Errorf("validating %s: %s", adm.File.Name, client.UserMessage(err))
			}
			fmt.Fprintf(out, "    %s (confidence %.0f%%)\n", v.Message, v.Confidence*100)
		}
	}

	fmt.Fprintf(out, "Uploaded %d file(s), %s\n", len(reg.Admitted), humanize.Bytes(uint64(total)))
	return nil
}
