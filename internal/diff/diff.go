// Package diff turns file revisions and git patches into the change
// descriptors reviewed in a session, and renders them back.
package diff

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sprite-ai/crdash/internal/model"
)

// SourceFunc returns the original content of a file named in a patch.
type SourceFunc func(name string) (string, bool)

// ParsePatch reads a unified git diff and returns one record per text file,
// keyed by the file's new name (old name for deletions). Runs of deleted
// lines followed by added lines pair up into modifications.
//
// When src knows the original content of a file, the record carries the
// full original and the patched result; otherwise both are rebuilt from the
// hunks alone.
func ParsePatch(raw string, src SourceFunc) (map[string]model.ModifiedFileRecord, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	out := make(map[string]model.ModifiedFileRecord, len(files))
	for _, f := range files {
		if f.IsBinary {
			continue
		}
		name := f.NewName
		if f.IsDelete || name == "" {
			name = f.OldName
		}

		rec := model.ModifiedFileRecord{
			FileName: name,
			Changes:  []model.Change{},
			Status:   model.RecordModified,
		}
		for _, frag := range f.TextFragments {
			rec.Changes = append(rec.Changes, fragmentChanges(frag)...)
		}

		var original string
		var ok bool
		if src != nil && !f.IsNew {
			original, ok = src(f.OldName)
		}
		if ok {
			var buf bytes.Buffer
			if err := gitdiff.Apply(&buf, strings.NewReader(original), f); err != nil {
				return nil, fmt.Errorf("applying patch to %s: %w", f.OldName, err)
			}
			rec.Original = original
			rec.Modified = buf.String()
		} else {
			rec.Original, rec.Modified = hunkText(f.TextFragments)
			if !f.IsNew && !f.IsDelete {
				rec.Hunks = hunks(f.TextFragments)
			}
		}
		out[name] = rec
	}
	return out, nil
}

// fragmentChanges walks one hunk and returns its change descriptors.
func fragmentChanges(frag *gitdiff.TextFragment) []model.Change {
	var changes []model.Change
	oldLine := int(frag.OldPosition)
	newLine := int(frag.NewPosition)

	var dels []pending
	var adds []pending
	flush := func() {
		changes = append(changes, pairRuns(dels, adds)...)
		dels, adds = nil, nil
	}

	for _, l := range frag.Lines {
		text := strings.TrimRight(l.Line, "\n")
		switch l.Op {
		case gitdiff.OpDelete:
			if len(adds) > 0 {
				flush()
			}
			dels = append(dels, pending{line: oldLine, text: text})
			oldLine++
		case gitdiff.OpAdd:
			adds = append(adds, pending{line: newLine, text: text})
			newLine++
		default:
			flush()
			oldLine++
			newLine++
		}
	}
	flush()
	return changes
}

type pending struct {
	line int
	text string
}

// pairRuns matches a run of deletions with the additions that replaced
// them. Unmatched deletions are keyed by their old line number, everything
// else by the new line number.
func pairRuns(dels, adds []pending) []model.Change {
	var out []model.Change
	n := min(len(dels), len(adds))
	for i := 0; i < n; i++ {
		out = append(out, model.Change{
			Type:       model.ChangeModification,
			Line:       adds[i].line,
			Content:    adds[i].text,
			OldContent: dels[i].text,
			NewContent: adds[i].text,
		})
	}
	for _, d := range dels[n:] {
		out = append(out, model.Change{
			Type:       model.ChangeDeletion,
			Line:       d.line,
			Content:    d.text,
			OldContent: d.text,
		})
	}
	for _, a := range adds[n:] {
		out = append(out, model.Change{
			Type:       model.ChangeAddition,
			Line:       a.line,
			Content:    a.text,
			NewContent: a.text,
		})
	}
	return out
}

// hunkText rebuilds the old and new sides covered by the hunks.
func hunkText(frags []*gitdiff.TextFragment) (string, string) {
	var oldB, newB strings.Builder
	for _, frag := range frags {
		for _, l := range frag.Lines {
			if l.Op != gitdiff.OpAdd {
				oldB.WriteString(l.Line)
			}
			if l.Op != gitdiff.OpDelete {
				newB.WriteString(l.Line)
			}
		}
	}
	return oldB.String(), newB.String()
}

func hunks(frags []*gitdiff.TextFragment) []model.Hunk {
	out := make([]model.Hunk, 0, len(frags))
	for _, frag := range frags {
		h := model.Hunk{OldStart: int(frag.OldPosition), NewStart: int(frag.NewPosition)}
		for _, l := range frag.Lines {
			if l.Op != gitdiff.OpAdd {
				h.OldLines++
			}
			if l.Op != gitdiff.OpDelete {
				h.NewLines++
			}
		}
		out = append(out, h)
	}
	return out
}

// Stats counts the files and change kinds across records.
func Stats(records map[string]model.ModifiedFileRecord) (files, added, modified, deleted int) {
	files = len(records)
	for _, rec := range records {
		for _, c := range rec.Changes {
			switch c.Type {
			case model.ChangeAddition:
				added++
			case model.ChangeModification:
				modified++
			case model.ChangeDeletion:
				deleted++
			}
		}
	}
	return
}

// GitDiff runs `git diff` with the given arguments and returns the raw output.
func GitDiff(ctx context.Context, repoDir string, args ...string) (string, error) {
	cmdArgs := append([]string{"diff", "--no-color"}, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	cmd.Dir = repoDir
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff: %w", err)
	}
	return string(out), nil
}

// GitShow returns the content of path at rev, or false if it does not exist
// there.
func GitShow(ctx context.Context, repoDir, rev, path string) (string, bool) {
	cmd := exec.CommandContext(ctx, "git", "show", rev+":"+path)
	cmd.Dir = repoDir
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}

// GitSource returns a SourceFunc reading originals from rev.
func GitSource(ctx context.Context, repoDir, rev string) SourceFunc {
	return func(name string) (string, bool) {
		return GitShow(ctx, repoDir, rev, name)
	}
}
