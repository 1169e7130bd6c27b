package session

import (
	"encoding/json"
	"sort"

	"github.com/sprite-ai/crdash/internal/model"
)

// Ledger records accept/reject decisions per file and per changed line.
// A Ledger value is never mutated; every transition returns a new one that
// shares untouched maps with its predecessor.
type Ledger struct {
	files map[string]model.Decision
	lines map[string]map[int]model.Decision
}

// Line returns the decision for one line. Unknown lines are pending.
func (l Ledger) Line(file string, line int) model.Decision {
	return l.lines[file][line]
}

// File returns the file-level badge. It is only set by AcceptFile/RejectFile
// and is not kept in sync with later per-line toggles.
func (l Ledger) File(file string) model.Decision {
	return l.files[file]
}

// KnownLines returns the lines of file that have a ledger entry, ascending.
func (l Ledger) KnownLines(file string) []int {
	var out []int
	for line := range l.lines[file] {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}

// IsEmpty reports whether no decision has been recorded.
func (l Ledger) IsEmpty() bool {
	return len(l.files) == 0 && len(l.lines) == 0
}

// ToggleLine flips a line between accepted and rejected. A pending line
// becomes accepted; there is no way back to pending.
func (l Ledger) ToggleLine(file string, line int) Ledger {
	next := model.DecisionAccepted
	if l.Line(file, line) == model.DecisionAccepted {
		next = model.DecisionRejected
	}
	return l.withLines(file, []int{line}, next)
}

// AcceptFile marks the file accepted and cascades to every known line of
// the file plus the given change lines.
func (l Ledger) AcceptFile(file string, changeLines []int) Ledger {
	return l.decideFile(file, changeLines, model.DecisionAccepted)
}

// RejectFile is the rejecting counterpart of AcceptFile.
func (l Ledger) RejectFile(file string, changeLines []int) Ledger {
	return l.decideFile(file, changeLines, model.DecisionRejected)
}

func (l Ledger) decideFile(file string, changeLines []int, d model.Decision) Ledger {
	lines := append(l.KnownLines(file), changeLines...)
	out := l.withLines(file, lines, d)

	files := make(map[string]model.Decision, len(l.files)+1)
	for k, v := range l.files {
		files[k] = v
	}
	files[file] = d
	out.files = files
	return out
}

func (l Ledger) withLines(file string, lines []int, d model.Decision) Ledger {
	outer := make(map[string]map[int]model.Decision, len(l.lines)+1)
	for k, v := range l.lines {
		outer[k] = v
	}
	inner := make(map[int]model.Decision, len(l.lines[file])+len(lines))
	for k, v := range l.lines[file] {
		inner[k] = v
	}
	for _, line := range lines {
		inner[line] = d
	}
	outer[file] = inner
	return Ledger{files: l.files, lines: outer}
}

type ledgerJSON struct {
	Files map[string]model.Decision         `json:"files"`
	Lines map[string]map[int]model.Decision `json:"lines"`
}

// MarshalJSON implements json.Marshaler.
func (l Ledger) MarshalJSON() ([]byte, error) {
	out := ledgerJSON{Files: l.files, Lines: l.lines}
	if out.Files == nil {
		out.Files = map[string]model.Decision{}
	}
	if out.Lines == nil {
		out.Lines = map[string]map[int]model.Decision{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Ledger) UnmarshalJSON(b []byte) error {
	var in ledgerJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	l.files = in.Files
	l.lines = in.Lines
	if len(l.files) == 0 {
		l.files = nil
	}
	if len(l.lines) == 0 {
		l.lines = nil
	}
	return nil
}

// Derive counts the decisions of every change slot across all records.
// The ledger annotates slots but never adds or removes them.
func Derive(records map[string]model.ModifiedFileRecord, l Ledger) model.ReviewProgress {
	var p model.ReviewProgress
	for name, rec := range records {
		for _, c := range rec.Changes {
			p.TotalChanges++
			switch l.Line(name, c.Line) {
			case model.DecisionAccepted:
				p.AcceptedChanges++
			case model.DecisionRejected:
				p.RejectedChanges++
			default:
				p.PendingChanges++
			}
		}
	}
	return p
}

// normalize clamps caller-supplied figures so that the counts always add up.
func normalize(p model.ReviewProgress) model.ReviewProgress {
	if p.AcceptedChanges < 0 {
		p.AcceptedChanges = 0
	}
	if p.RejectedChanges < 0 {
		p.RejectedChanges = 0
	}
	if p.TotalChanges < p.Reviewed() {
		p.TotalChanges = p.Reviewed()
	}
	p.PendingChanges = p.TotalChanges - p.Reviewed()
	return p
}
