package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/sprite-ai/crdash/internal/model"
)

// Changes compares two revisions of a file line by line. Replaced lines
// become modifications, inserted lines additions and removed lines
// deletions. Additions and modifications carry the new line number,
// deletions the old one.
func Changes(original, modified string) []model.Change {
	var out []model.Change
	walk(original, modified, func(op lineOp) {
		if op.change != nil {
			out = append(out, *op.change)
		}
	})
	if out == nil {
		out = []model.Change{}
	}
	return out
}

// Merge returns original with only the changes keep approves applied. With
// a keep that approves everything the result equals modified; approving
// nothing yields original.
func Merge(original, modified string, keep func(model.Change) bool) string {
	return MergeRecord(model.ModifiedFileRecord{
		Original: original,
		Modified: modified,
		Changes:  Changes(original, modified),
	}, keep)
}

// MergeRecord returns rec.Original with only the changes of rec.Changes
// that keep approves applied. Changes are matched to the line alignment of
// Original and Modified by content, in file order, so their line numbers
// need not count from the first line of Original. For a partial record the
// result is the merged hunk text.
func MergeRecord(rec model.ModifiedFileRecord, keep func(model.Change) bool) string {
	m := newChangeMatcher(rec.Changes, keep)
	if !rec.Partial() {
		return m.merge(rec.Original, rec.Modified)
	}
	var b strings.Builder
	for _, h := range splitHunks(rec) {
		b.WriteString(m.merge(h.old, h.new))
	}
	return b.String()
}

// Unified renders a record as a unified diff with three lines of context.
// Partial records keep their hunk positions.
func Unified(rec model.ModifiedFileRecord) (string, error) {
	if rec.Partial() {
		return AcceptedPatch(rec, func(model.Change) bool { return true })
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(rec.Original),
		B:        difflib.SplitLines(rec.Modified),
		FromFile: "a/" + rec.FileName,
		ToFile:   "b/" + rec.FileName,
		Context:  3,
	})
}

// AcceptedPatch renders a unified diff holding only the changes keep
// approves. It is empty when nothing is kept.
func AcceptedPatch(rec model.ModifiedFileRecord, keep func(model.Change) bool) (string, error) {
	if !rec.Partial() {
		merged := rec
		merged.Modified = MergeRecord(rec, keep)
		return Unified(merged)
	}

	m := newChangeMatcher(rec.Changes, keep)
	var body strings.Builder
	delta := 0
	for _, h := range splitHunks(rec) {
		merged := m.merge(h.old, h.new)
		if merged == h.old {
			continue
		}
		oldLines, newLines := splitLines(h.old), splitLines(merged)

		first := h.OldStart
		if len(oldLines) == 0 {
			first++
		}
		newStart := first + delta
		if len(newLines) == 0 {
			newStart--
		}
		fmt.Fprintf(&body, "@@ -%d,%d +%d,%d @@\n", h.OldStart, len(oldLines), newStart, len(newLines))
		writeHunkBody(&body, oldLines, newLines)
		delta += len(newLines) - len(oldLines)
	}
	if body.Len() == 0 {
		return "", nil
	}
	return fmt.Sprintf("--- a/%s\n+++ b/%s\n%s", rec.FileName, rec.FileName, body.String()), nil
}

// hunkSpan is one hunk of a partial record with its old and new text.
type hunkSpan struct {
	model.Hunk
	old, new string
}

func splitHunks(rec model.ModifiedFileRecord) []hunkSpan {
	a := splitLines(rec.Original)
	b := splitLines(rec.Modified)
	out := make([]hunkSpan, 0, len(rec.Hunks))
	var i, j int
	for _, h := range rec.Hunks {
		ie := min(i+h.OldLines, len(a))
		je := min(j+h.NewLines, len(b))
		out = append(out, hunkSpan{
			Hunk: h,
			old:  strings.Join(a[i:ie], ""),
			new:  strings.Join(b[j:je], ""),
		})
		i, j = ie, je
	}
	return out
}

// writeHunkBody writes every line of a hunk with its context, removal or
// addition prefix.
func writeHunkBody(b *strings.Builder, a, bl []string) {
	line := func(prefix, text string) {
		b.WriteString(prefix)
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n\\ No newline at end of file\n")
		}
	}
	for _, oc := range difflib.NewMatcher(a, bl).GetOpCodes() {
		if oc.Tag == 'e' {
			for _, t := range a[oc.I1:oc.I2] {
				line(" ", t)
			}
			continue
		}
		for _, t := range a[oc.I1:oc.I2] {
			line("-", t)
		}
		for _, t := range bl[oc.J1:oc.J2] {
			line("+", t)
		}
	}
}

// changeMatcher pairs the steps of a line alignment with the change
// descriptors of a record. Each descriptor is used once.
type changeMatcher struct {
	changes []model.Change
	used    []bool
	keep    func(model.Change) bool
}

func newChangeMatcher(changes []model.Change, keep func(model.Change) bool) *changeMatcher {
	return &changeMatcher{changes: changes, used: make([]bool, len(changes)), keep: keep}
}

// take returns the first unused change of type t with the given text.
func (m *changeMatcher) take(t model.ChangeType, oldText, newText string) (model.Change, bool) {
	for i, c := range m.changes {
		if m.used[i] || c.Type != t {
			continue
		}
		if t != model.ChangeAddition && trimEOL(oldSide(c)) != oldText {
			continue
		}
		if t != model.ChangeDeletion && trimEOL(newSide(c)) != newText {
			continue
		}
		m.used[i] = true
		return c, true
	}
	return model.Change{}, false
}

func (m *changeMatcher) kept(t model.ChangeType, oldText, newText string) bool {
	c, ok := m.take(t, oldText, newText)
	return ok && m.keep(c)
}

func (m *changeMatcher) merge(original, modified string) string {
	var b strings.Builder
	walk(original, modified, func(op lineOp) {
		if op.change == nil {
			b.WriteString(op.old)
			return
		}
		oldText, newText := trimEOL(op.old), trimEOL(op.new)
		switch op.change.Type {
		case model.ChangeModification:
			if c, ok := m.take(model.ChangeModification, oldText, newText); ok {
				if m.keep(c) {
					b.WriteString(op.new)
				} else {
					b.WriteString(op.old)
				}
				return
			}
			// The record may list the replacement as a deletion and an
			// addition.
			if !m.kept(model.ChangeDeletion, oldText, "") {
				b.WriteString(op.old)
			}
			if m.kept(model.ChangeAddition, "", newText) {
				b.WriteString(op.new)
			}
		case model.ChangeDeletion:
			if !m.kept(model.ChangeDeletion, oldText, "") {
				b.WriteString(op.old)
			}
		case model.ChangeAddition:
			if m.kept(model.ChangeAddition, "", newText) {
				b.WriteString(op.new)
			}
		}
	})
	return b.String()
}

func oldSide(c model.Change) string {
	if c.Type == model.ChangeDeletion && c.OldContent == "" {
		return c.Content
	}
	return c.OldContent
}

func newSide(c model.Change) string {
	if c.NewContent == "" {
		return c.Content
	}
	return c.NewContent
}

// lineOp is one step of the line alignment. old and new hold the raw text
// (with line endings) each side contributes; change is nil for equal lines.
type lineOp struct {
	old, new string
	change   *model.Change
}

func walk(original, modified string, fn func(lineOp)) {
	a := splitLines(original)
	b := splitLines(modified)
	m := difflib.NewMatcher(a, b)
	for _, oc := range m.GetOpCodes() {
		switch oc.Tag {
		case 'e':
			for i := oc.I1; i < oc.I2; i++ {
				fn(lineOp{old: a[i], new: a[i]})
			}
		case 'r':
			n := min(oc.I2-oc.I1, oc.J2-oc.J1)
			for k := 0; k < n; k++ {
				oldText, newText := a[oc.I1+k], b[oc.J1+k]
				fn(lineOp{old: oldText, new: newText, change: &model.Change{
					Type:       model.ChangeModification,
					Line:       oc.J1 + k + 1,
					Content:    trimEOL(newText),
					OldContent: trimEOL(oldText),
					NewContent: trimEOL(newText),
				}})
			}
			deleteRange(a, oc.I1+n, oc.I2, fn)
			insertRange(b, oc.J1+n, oc.J2, fn)
		case 'd':
			deleteRange(a, oc.I1, oc.I2, fn)
		case 'i':
			insertRange(b, oc.J1, oc.J2, fn)
		}
	}
}

func deleteRange(a []string, from, to int, fn func(lineOp)) {
	for i := from; i < to; i++ {
		fn(lineOp{old: a[i], change: &model.Change{
			Type:       model.ChangeDeletion,
			Line:       i + 1,
			Content:    trimEOL(a[i]),
			OldContent: trimEOL(a[i]),
		}})
	}
}

func insertRange(b []string, from, to int, fn func(lineOp)) {
	for j := from; j < to; j++ {
		fn(lineOp{new: b[j], change: &model.Change{
			Type:       model.ChangeAddition,
			Line:       j + 1,
			Content:    trimEOL(b[j]),
			NewContent: trimEOL(b[j]),
		}})
	}
}

// splitLines splits s keeping line endings, so joining the parts gives s
// back exactly.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.SplitAfter(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}
