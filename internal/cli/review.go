package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/crdash/internal/client"
	"github.com/sprite-ai/crdash/internal/diff"
	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
	"github.com/sprite-ai/crdash/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review [patch-file | - | commit-range]",
	Short: "Review suggested changes in the terminal",
	Long: `Open the interactive review UI. Suggested changes come from a backend
session (--session), a patch file, stdin, or git.

Examples:
  crdash review                       # working tree vs HEAD
  crdash review HEAD~1                # working tree vs HEAD~1
  crdash review fixes.patch           # a saved patch
  git diff | crdash review -          # pipe any diff
  crdash review --session abc123      # fixes stored on the backend`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().String("session", "", "backend session to load suggested fixes from")
	reviewCmd.Flags().Bool("push", false, "send file decisions back to the backend session")
	reviewCmd.Flags().Bool("stat", false, "print change stats and exit (non-interactive)")
	reviewCmd.Flags().StringP("output-patch", "o", "", "write accepted changes as a patch to file")
	reviewCmd.Flags().String("write", "", "write files with accepted changes applied under this directory")
	reviewCmd.Flags().Bool("commit-msg", false, "print a suggested commit message after review")
	reviewCmd.Flags().String("style", diff.DefaultStyle, "syntax highlighting style")
	reviewCmd.Flags().Bool("no-highlight", false, "disable syntax highlighting")
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sessionID, _ := cmd.Flags().GetString("session")

	records, err := loadRecords(ctx, cmd, sessionID, args)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes to review.")
		return nil
	}

	if stat, _ := cmd.Flags().GetBool("stat"); stat {
		printStat(cmd.OutOrStdout(), records)
		return nil
	}

	store := session.NewStore(logger)
	if sessionID != "" {
		store.Dispatch(session.SetSessionID{ID: sessionID})
	}
	store.Dispatch(session.SetModifiedCode{Records: records})

	var hl *diff.Highlighter
	if off, _ := cmd.Flags().GetBool("no-highlight"); !off {
		style, _ := cmd.Flags().GetString("style")
		hl = diff.NewHighlighter(style)
	}

	st, err := tui.Run(store, hl)
	if err != nil {
		return err
	}
	o := tui.Outcome{State: st}
	stderr := cmd.ErrOrStderr()
	fmt.Fprint(stderr, o.Summary())

	if patchPath, _ := cmd.Flags().GetString("output-patch"); patchPath != "" {
		patch, err := o.Patch()
		if err != nil {
			return err
		}
		if patch == "" {
			fmt.Fprintln(stderr, "No accepted changes, no patch written.")
		} else {
			if err := os.WriteFile(patchPath, []byte(patch), 0o644); err != nil {
				return fmt.Errorf("writing patch: %w", err)
			}
			fmt.Fprintf(stderr, "Patch written to %s\n", patchPath)
		}
	}

	if dir, _ := cmd.Flags().GetString("write"); dir != "" {
		written, err := o.Write(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Wrote %d file(s) under %s\n", len(written), dir)
		if skipped := o.Partial(); len(skipped) > 0 {
			fmt.Fprintf(stderr, "Skipped %d file(s) known only from patch hunks: %s\n",
				len(skipped), strings.Join(skipped, ", "))
		}
	}

	if commitMsg, _ := cmd.Flags().GetBool("commit-msg"); commitMsg {
		if msg := o.CommitMessage(); msg != "" {
			fmt.Fprintln(cmd.OutOrStdout(), msg)
		}
	}

	if push, _ := cmd.Flags().GetBool("push"); push {
		if sessionID == "" {
			return fmt.Errorf("--push needs --session")
		}
		return pushDecisions(ctx, newClient(), sessionID, o)
	}
	return nil
}

// loadRecords collects the suggested changes to review.
func loadRecords(ctx context.Context, cmd *cobra.Command, sessionID string, args []string) (map[string]model.ModifiedFileRecord, error) {
	if sessionID != "" {
		mf, err := newClient().ModifiedFiles(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("loading suggested fixes: %s", client.UserMessage(err))
		}
		return mf.Records(), nil
	}

	if len(args) == 1 {
		if args[0] == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return diff.ParsePatch(string(data), nil)
		}
		if fi, err := os.Stat(args[0]); err == nil && !fi.IsDir() {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return nil, fmt.Errorf("reading patch: %w", err)
			}
			return diff.ParsePatch(string(data), nil)
		}
	}

	repoDir, err := gitRepoRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("not in a git repository (or git not installed): %w", err)
	}

	base := "HEAD"
	if len(args) == 1 {
		base = rangeBase(args[0])
	}
	raw, err := diff.GitDiff(ctx, repoDir, orDefault(args, "HEAD")...)
	if err != nil {
		return nil, err
	}
	return diff.ParsePatch(raw, func(name string) (string, bool) {
		return diff.GitShow(ctx, repoDir, base, name)
	})
}

// rangeBase returns the revision the old side of a git diff range refers
// to: "A" for "A..B" and "A...B", the revision itself otherwise.
func rangeBase(rng string) string {
	if i := strings.Index(rng, ".."); i >= 0 {
		if i == 0 {
			return "HEAD"
		}
		return rng[:i]
	}
	return rng
}

func orDefault(args []string, def string) []string {
	if len(args) == 0 {
		return []string{def}
	}
	return args
}

// pushDecisions sends the whole-file verdicts to the backend.
func pushDecisions(ctx context.Context, c *client.Client, sessionID string, o tui.Outcome) error {
	for _, name := range o.State.FileNames() {
		d := o.FileDecision(name)
		if d == model.DecisionPending {
			continue
		}
		ack, err := c.UpdateReview(ctx, client.ReviewUpdate{
			SessionID: sessionID,
			FileName:  name,
			Status:    d.String(),
			AcceptAll: true,
		})
		if err != nil {
			return fmt.Errorf("updating review of %s: %s", name, client.UserMessage(err))
		}
		logger.Debug("review pushed",
			slog.String("file", name),
			slog.String("status", d.String()),
			slog.Int("updated", ack.UpdatedChanges))
	}
	return nil
}

func printStat(w io.Writer, records map[string]model.ModifiedFileRecord) {
	files, added, modified, deleted := diff.Stats(records)
	fmt.Fprintf(w, "%d file(s) changed, %d addition(s), %d modification(s), %d deletion(s)\n\n",
		files, added, modified, deleted)

	for _, name := range sortedKeys(records) {
		_, a, m, d := diff.Stats(map[string]model.ModifiedFileRecord{name: records[name]})
		fmt.Fprintf(w, "  %-50s +%-4d ~%-4d -%d\n", name, a, m, d)
	}
}

func gitRepoRoot(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
