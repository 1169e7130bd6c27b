// Package model defines the core data types shared across crdash.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity ranks an issue or checklist item.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity accepts any casing of the four severity names.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// FileKind is the registry partition a file belongs to.
type FileKind string

const (
	KindCode FileKind = "code"
	KindSRS  FileKind = "srs"
)

// UploadedFile is a file registered in the session.
type UploadedFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	LastModified time.Time `json:"lastModified"`
	Content      *string   `json:"content,omitempty"` // nil until read
}

// HasContent reports whether the file content has been read.
func (f UploadedFile) HasContent() bool {
	return f.Content != nil
}

// UploadedFiles holds both registry partitions.
type UploadedFiles struct {
	CodeFiles []UploadedFile `json:"codeFiles"`
	SRSFiles  []UploadedFile `json:"srsFiles"`
}

// Partition returns the files of the given kind.
func (u UploadedFiles) Partition(kind FileKind) []UploadedFile {
	if kind == KindSRS {
		return u.SRSFiles
	}
	return u.CodeFiles
}

// ChecklistItem is one requirement-derived check.
type ChecklistItem struct {
	ID                  string   `json:"id"`
	Category            string   `json:"category"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Severity            Severity `json:"severity"`
	Checked             bool     `json:"checked"`
	Automated           bool     `json:"automated"`
	Items               []string `json:"items"`
	RelevantRequirement string   `json:"relevantRequirement,omitempty"`
}

// ChecklistUpdate holds the fields to merge into a checklist item.
// Nil fields are left untouched.
type ChecklistUpdate struct {
	Category    *string   `json:"category,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	Checked     *bool     `json:"checked,omitempty"`
	Automated   *bool     `json:"automated,omitempty"`
	Items       []string  `json:"items,omitempty"`
}

// Apply returns a copy of item with the update merged in.
func (u ChecklistUpdate) Apply(item ChecklistItem) ChecklistItem {
	if u.Category != nil {
		item.Category = *u.Category
	}
	if u.Title != nil {
		item.Title = *u.Title
	}
	if u.Description != nil {
		item.Description = *u.Description
	}
	if u.Severity != nil {
		item.Severity = *u.Severity
	}
	if u.Checked != nil {
		item.Checked = *u.Checked
	}
	if u.Automated != nil {
		item.Automated = *u.Automated
	}
	if u.Items != nil {
		item.Items = append([]string(nil), u.Items...)
	}
	return item
}

// Issue is a single finding produced by analysis. Its review state lives in
// the acceptance ledger, not here.
type Issue struct {
	ID          string   `json:"id"`
	Line        int      `json:"line"`
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
	AutoFixable bool     `json:"autoFixable"`
}

// ChangeType classifies a suggested change.
type ChangeType string

const (
	ChangeAddition     ChangeType = "addition"
	ChangeModification ChangeType = "modification"
	ChangeDeletion     ChangeType = "deletion"
)

// Change is one line-level edit inside a modified file.
type Change struct {
	Type        ChangeType `json:"type"`
	Line        int        `json:"line"`
	Content     string     `json:"content,omitempty"`
	OldContent  string     `json:"oldContent,omitempty"`
	NewContent  string     `json:"newContent,omitempty"`
	Description string     `json:"description,omitempty"`
}

// RecordStatus is the state of a modified file record.
type RecordStatus string

const (
	RecordPending  RecordStatus = "pending"
	RecordModified RecordStatus = "modified"
)

// ModifiedFileRecord holds the suggested rewrite of one file.
type ModifiedFileRecord struct {
	FileName    string       `json:"fileName"`
	Original    string       `json:"original"`
	Modified    string       `json:"modified"`
	Changes     []Change     `json:"changes"`
	IssuesFixed []string     `json:"issuesFixed"`
	Status      RecordStatus `json:"status"`

	// Hunks is set when Original and Modified hold only the text of these
	// hunks, concatenated in order, instead of whole files.
	Hunks []Hunk `json:"hunks,omitempty"`
}

// Hunk locates one patch hunk in the old and new file. Starts are 1-based
// line numbers as written in a unified diff header.
type Hunk struct {
	OldStart int `json:"oldStart"`
	OldLines int `json:"oldLines"`
	NewStart int `json:"newStart"`
	NewLines int `json:"newLines"`
}

// Partial reports whether the record holds hunk excerpts only.
func (r ModifiedFileRecord) Partial() bool {
	return len(r.Hunks) > 0
}

// ChangeLines returns the ledger line keys of every change in the record.
func (r ModifiedFileRecord) ChangeLines() []int {
	lines := make([]int, 0, len(r.Changes))
	for _, c := range r.Changes {
		lines = append(lines, c.Line)
	}
	return lines
}

// Decision is the reviewer's verdict on a change or a whole file.
type Decision int

const (
	DecisionPending Decision = iota
	DecisionAccepted
	DecisionRejected
)

func (d Decision) String() string {
	switch d {
	case DecisionAccepted:
		return "accepted"
	case DecisionRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "pending", "":
		*d = DecisionPending
	case "accepted":
		*d = DecisionAccepted
	case "rejected":
		*d = DecisionRejected
	default:
		return fmt.Errorf("unknown decision %q", string(b))
	}
	return nil
}

// ReviewProgress is derived from the acceptance ledger.
type ReviewProgress struct {
	TotalChanges    int `json:"totalChanges"`
	AcceptedChanges int `json:"acceptedChanges"`
	RejectedChanges int `json:"rejectedChanges"`
	PendingChanges  int `json:"pendingChanges"`
}

// Reviewed returns the number of changes with a decision.
func (p ReviewProgress) Reviewed() int {
	return p.AcceptedChanges + p.RejectedChanges
}

// Percent returns the reviewed share of all changes, 0-100.
func (p ReviewProgress) Percent() int {
	if p.TotalChanges == 0 {
		return 0
	}
	return p.Reviewed() * 100 / p.TotalChanges
}
