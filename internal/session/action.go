package session

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sprite-ai/crdash/internal/model"
)

// Action is a request to transform the session state. Actions are plain
// values; the reducer ignores any type it does not recognize.
type Action interface {
	Type() string
}

// Action type names, as used on the wire.
const (
	TypeSetUploadedFiles     = "SET_UPLOADED_FILES"
	TypeSetAnalysisResults   = "SET_ANALYSIS_RESULTS"
	TypeSetChecklist         = "SET_CHECKLIST"
	TypeUpdateChecklistItem  = "UPDATE_CHECKLIST_ITEM"
	TypeSetModifiedCode      = "SET_MODIFIED_CODE"
	TypeUpdateReviewProgress = "UPDATE_REVIEW_PROGRESS"
	TypeSetSelectedModel     = "SET_SELECTED_MODEL"
	TypeSetAnalyzing         = "SET_ANALYZING"
	TypeClearAllData         = "CLEAR_ALL_DATA"
	TypeToggleLine           = "TOGGLE_LINE"
	TypeAcceptFile           = "ACCEPT_FILE"
	TypeRejectFile           = "REJECT_FILE"
	TypeSetSessionID         = "SET_SESSION_ID"
	TypeSetFileContent       = "SET_FILE_CONTENT"
	TypeRemoveFile           = "REMOVE_FILE"
)

// SetUploadedFiles replaces both registry partitions. Callers must include
// the partition they did not change.
type SetUploadedFiles struct {
	Files model.UploadedFiles
}

// SetAnalysisResults swaps in a new analysis result and clears IsAnalyzing.
type SetAnalysisResults struct {
	Result *model.AnalysisResult
}

// SetChecklist replaces the checklist.
type SetChecklist struct {
	Items []model.ChecklistItem
}

// UpdateChecklistItem merges Updates into the item with the given ID.
type UpdateChecklistItem struct {
	ID      string                `json:"id"`
	Updates model.ChecklistUpdate `json:"updates"`
}

// SetModifiedCode merges records into the modified-code map by file name.
type SetModifiedCode struct {
	Records map[string]model.ModifiedFileRecord
}

// ProgressUpdate carries caller-computed progress figures.
type ProgressUpdate struct {
	TotalChanges    *int `json:"totalChanges,omitempty"`
	AcceptedChanges *int `json:"acceptedChanges,omitempty"`
	RejectedChanges *int `json:"rejectedChanges,omitempty"`
	PendingChanges  *int `json:"pendingChanges,omitempty"`
}

// UpdateReviewProgress merges caller figures into the progress. They only
// survive while there are no modified-file records to derive progress from.
type UpdateReviewProgress struct {
	Progress ProgressUpdate
}

// SetSelectedModel selects the AI model for later analyses.
type SetSelectedModel struct {
	Model string
}

// SetAnalyzing sets the analysis-in-flight flag.
type SetAnalyzing struct {
	Analyzing bool
}

// ClearAllData resets the session to its initial state.
type ClearAllData struct{}

// ToggleLine flips the decision of one changed line.
type ToggleLine struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// AcceptFile accepts a file and cascades to its known lines.
type AcceptFile struct {
	File string `json:"file"`
}

// RejectFile rejects a file and cascades to its known lines.
type RejectFile struct {
	File string `json:"file"`
}

// SetSessionID records the backend session identifier.
type SetSessionID struct {
	ID string
}

// SetFileContent stores the text content read for a registered file.
type SetFileContent struct {
	FileID  string `json:"fileId"`
	Content string `json:"content"`
}

// RemoveFile drops a registered file from its partition.
type RemoveFile struct {
	FileID string `json:"fileId"`
}

func (SetUploadedFiles) Type() string     { return TypeSetUploadedFiles }
func (SetAnalysisResults) Type() string   { return TypeSetAnalysisResults }
func (SetChecklist) Type() string         { return TypeSetChecklist }
func (UpdateChecklistItem) Type() string  { return TypeUpdateChecklistItem }
func (SetModifiedCode) Type() string      { return TypeSetModifiedCode }
func (UpdateReviewProgress) Type() string { return TypeUpdateReviewProgress }
func (SetSelectedModel) Type() string     { return TypeSetSelectedModel }
func (SetAnalyzing) Type() string         { return TypeSetAnalyzing }
func (ClearAllData) Type() string         { return TypeClearAllData }
func (ToggleLine) Type() string           { return TypeToggleLine }
func (AcceptFile) Type() string           { return TypeAcceptFile }
func (RejectFile) Type() string           { return TypeRejectFile }
func (SetSessionID) Type() string         { return TypeSetSessionID }
func (SetFileContent) Type() string       { return TypeSetFileContent }
func (RemoveFile) Type() string           { return TypeRemoveFile }

// decoders maps wire type names to payload decoders.
var decoders = map[string]func(json.RawMessage) (Action, error){
	TypeSetUploadedFiles: func(raw json.RawMessage) (Action, error) {
		var files model.UploadedFiles
		if err := decodePayload(raw, &files); err != nil {
			return nil, err
		}
		return SetUploadedFiles{Files: files}, nil
	},
	TypeSetAnalysisResults: func(raw json.RawMessage) (Action, error) {
		var res *model.AnalysisResult
		if err := decodePayload(raw, &res); err != nil {
			return nil, err
		}
		return SetAnalysisResults{Result: res}, nil
	},
	TypeSetChecklist: func(raw json.RawMessage) (Action, error) {
		var items []model.ChecklistItem
		if err := decodePayload(raw, &items); err != nil {
			return nil, err
		}
		return SetChecklist{Items: items}, nil
	},
	TypeSetModifiedCode: func(raw json.RawMessage) (Action, error) {
		var recs map[string]model.ModifiedFileRecord
		if err := decodePayload(raw, &recs); err != nil {
			return nil, err
		}
		return SetModifiedCode{Records: recs}, nil
	},
	TypeUpdateReviewProgress: func(raw json.RawMessage) (Action, error) {
		var p ProgressUpdate
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		return UpdateReviewProgress{Progress: p}, nil
	},
	TypeSetSelectedModel: func(raw json.RawMessage) (Action, error) {
		var m string
		if err := decodePayload(raw, &m); err != nil {
			return nil, err
		}
		return SetSelectedModel{Model: m}, nil
	},
	TypeSetAnalyzing: func(raw json.RawMessage) (Action, error) {
		var on bool
		if err := decodePayload(raw, &on); err != nil {
			return nil, err
		}
		return SetAnalyzing{Analyzing: on}, nil
	},
	TypeSetSessionID: func(raw json.RawMessage) (Action, error) {
		var id string
		if err := decodePayload(raw, &id); err != nil {
			return nil, err
		}
		return SetSessionID{ID: id}, nil
	},
	TypeClearAllData: func(json.RawMessage) (Action, error) {
		return ClearAllData{}, nil
	},
	TypeUpdateChecklistItem: decodeStruct[UpdateChecklistItem],
	TypeToggleLine:          decodeStruct[ToggleLine],
	TypeAcceptFile:          decodeStruct[AcceptFile],
	TypeRejectFile:          decodeStruct[RejectFile],
	TypeSetFileContent:      decodeStruct[SetFileContent],
	TypeRemoveFile:          decodeStruct[RemoveFile],
}

// decodeStruct decodes actions whose payload is the action struct itself.
func decodeStruct[T Action](raw json.RawMessage) (Action, error) {
	var a T
	if err := decodePayload(raw, &a); err != nil {
		return nil, err
	}
	return a, nil
}

// DecodeAction builds a typed action from a wire envelope. Unknown type
// names yield a nil action and no error.
func DecodeAction(typ string, payload json.RawMessage) (Action, error) {
	dec, ok := decoders[typ]
	if !ok {
		return nil, nil
	}
	a, err := dec(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", typ, err)
	}
	return a, nil
}

// KnownTypes lists every action type DecodeAction understands.
func KnownTypes() []string {
	out := make([]string, 0, len(decoders))
	for k := range decoders {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload")
	}
	return json.Unmarshal(raw, v)
}

func sortStrings(s []string) {
	sort.Strings(s)
}
