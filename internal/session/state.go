// Package session holds the review session model: the immutable State
// snapshot, the actions that transform it, the pure reducer and the Store
// that serializes dispatches.
package session

import (
	"github.com/sprite-ai/crdash/internal/model"
)

// DefaultModel is the AI model selected for a fresh session.
const DefaultModel = "gpt-4o"

// State is one immutable snapshot of the review session.
type State struct {
	UploadedFiles   model.UploadedFiles                 `json:"uploadedFiles"`
	AnalysisResults *model.AnalysisResult               `json:"analysisResults"`
	Checklist       []model.ChecklistItem               `json:"checklist"`
	ModifiedCode    map[string]model.ModifiedFileRecord `json:"modifiedCode"`
	Ledger          Ledger                              `json:"ledger"`
	ReviewProgress  model.ReviewProgress                `json:"reviewProgress"`
	SelectedModel   string                              `json:"selectedModel"`
	IsAnalyzing     bool                                `json:"isAnalyzing"`
	SessionID       string                              `json:"sessionId,omitempty"`
}

// Initial returns the state of a fresh session.
func Initial() State {
	return State{
		UploadedFiles: model.UploadedFiles{
			CodeFiles: []model.UploadedFile{},
			SRSFiles:  []model.UploadedFile{},
		},
		Checklist:     []model.ChecklistItem{},
		ModifiedCode:  map[string]model.ModifiedFileRecord{},
		SelectedModel: DefaultModel,
	}
}

// FileNames returns the modified file names in a stable order.
func (s State) FileNames() []string {
	names := make([]string, 0, len(s.ModifiedCode))
	for name := range s.ModifiedCode {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

// FileDecision returns the verdict for a whole file. A file-level badge
// wins; otherwise a file is accepted or rejected only when every change
// has that decision.
func (s State) FileDecision(name string) model.Decision {
	if d := s.Ledger.File(name); d != model.DecisionPending {
		return d
	}
	changes := s.ModifiedCode[name].Changes
	if len(changes) == 0 {
		return model.DecisionPending
	}
	first := s.Ledger.Line(name, changes[0].Line)
	for _, c := range changes[1:] {
		if s.Ledger.Line(name, c.Line) != first {
			return model.DecisionPending
		}
	}
	return first
}

// FindFile returns the uploaded file with the given ID.
func (s State) FindFile(id string) (model.UploadedFile, model.FileKind, bool) {
	for _, f := range s.UploadedFiles.CodeFiles {
		if f.ID == id {
			return f, model.KindCode, true
		}
	}
	for _, f := range s.UploadedFiles.SRSFiles {
		if f.ID == id {
			return f, model.KindSRS, true
		}
	}
	return model.UploadedFile{}, "", false
}

// CheckedCount returns how many checklist items are checked.
func (s State) CheckedCount() int {
	n := 0
	for _, it := range s.Checklist {
		if it.Checked {
			n++
		}
	}
	return n
}
