package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sprite-ai/crdash/internal/diff"
	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

// Outcome is the result of a finished review session.
type Outcome struct {
	State session.State
}

// FileDecision returns the verdict for a whole file.
func (o Outcome) FileDecision(name string) model.Decision {
	return o.State.FileDecision(name)
}

// Files returns the files whose verdict is d, in display order.
func (o Outcome) Files(d model.Decision) []string {
	var out []string
	for _, name := range o.State.FileNames() {
		if o.FileDecision(name) == d {
			out = append(out, name)
		}
	}
	return out
}

// touched returns files with at least one accepted change.
func (o Outcome) touched() []string {
	var out []string
	for _, name := range o.State.FileNames() {
		for _, c := range o.State.ModifiedCode[name].Changes {
			if o.State.Ledger.Line(name, c.Line) == model.DecisionAccepted {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// accepted reports whether a change of name was accepted.
func (o Outcome) accepted(name string) func(model.Change) bool {
	return func(c model.Change) bool {
		return o.State.Ledger.Line(name, c.Line) == model.DecisionAccepted
	}
}

// Merged returns the original content of name with only its accepted
// changes applied. For a file known only from patch hunks this is the
// merged hunk text.
func (o Outcome) Merged(name string) string {
	return diff.MergeRecord(o.State.ModifiedCode[name], o.accepted(name))
}

// Patch creates a unified diff containing only the accepted changes.
func (o Outcome) Patch() (string, error) {
	var b strings.Builder
	for _, name := range o.touched() {
		u, err := diff.AcceptedPatch(o.State.ModifiedCode[name], o.accepted(name))
		if err != nil {
			return "", fmt.Errorf("rendering %s: %w", name, err)
		}
		b.WriteString(u)
	}
	return b.String(), nil
}

// Partial returns the files with accepted changes whose full content is
// unknown. Write skips them; Patch still covers them.
func (o Outcome) Partial() []string {
	var out []string
	for _, name := range o.touched() {
		if o.State.ModifiedCode[name].Partial() {
			out = append(out, name)
		}
	}
	return out
}

// Write stores the merged content of every file with accepted changes
// under dir and returns the paths written. Partial files are skipped.
func (o Outcome) Write(dir string) ([]string, error) {
	var written []string
	for _, name := range o.touched() {
		if o.State.ModifiedCode[name].Partial() {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("creating directory for %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(o.Merged(name)), 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// CommitMessage suggests a commit message for the accepted changes.
func (o Outcome) CommitMessage() string {
	touched := o.touched()
	if len(touched) == 0 {
		return ""
	}

	var b strings.Builder
	if len(touched) == 1 {
		fmt.Fprintf(&b, "Apply review suggestions to %s", touched[0])
	} else {
		fmt.Fprintf(&b, "Apply review suggestions to %d files", len(touched))
	}

	p := o.State.ReviewProgress
	fmt.Fprintf(&b, "\n\nAccepted %d of %d suggested changes.\n", p.AcceptedChanges, p.TotalChanges)
	for _, name := range touched {
		fmt.Fprintf(&b, "  - %s\n", name)
	}

	if rejected := o.Files(model.DecisionRejected); len(rejected) > 0 {
		b.WriteString("\nRejected files:\n")
		for _, name := range rejected {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
	}
	return b.String()
}

// Summary renders the per-file verdicts for the terminal.
func (o Outcome) Summary() string {
	var b strings.Builder
	p := o.State.ReviewProgress

	b.WriteString(summaryHeaderStyle.Render("Review summary"))
	b.WriteByte('\n')
	for _, name := range o.State.FileNames() {
		d := o.FileDecision(name)
		fmt.Fprintf(&b, "  %s %s\n", decisionBadge(d), name)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s  %s  %s  (%d%% reviewed)\n",
		acceptedStyle.Render(fmt.Sprintf("%d accepted", p.AcceptedChanges)),
		rejectedStyle.Render(fmt.Sprintf("%d rejected", p.RejectedChanges)),
		pendingStyle.Render(fmt.Sprintf("%d pending", p.PendingChanges)),
		p.Percent())
	return b.String()
}
