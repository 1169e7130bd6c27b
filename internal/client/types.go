package client

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sprite-ai/crdash/internal/diff"
	"github.com/sprite-ai/crdash/internal/model"
)

// SessionInfo is returned by CreateSession.
type SessionInfo struct {
	ID      string `json:"session_id"`
	Message string `json:"message"`
}

// UploadRequest is the JSON body of an upload. Content is base64 encoded.
type UploadRequest struct {
	Name     string         `json:"name"`
	Type     model.FileKind `json:"type"`
	Size     int64          `json:"size"`
	Content  string         `json:"content"`
	MimeType string         `json:"mime_type"`
}

// UploadAck acknowledges an upload.
type UploadAck struct {
	FileID    string `json:"file_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// RemoteFile is a file as stored by the backend.
type RemoteFile struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            model.FileKind `json:"type"`
	Size            int64          `json:"size"`
	Content         *string        `json:"content,omitempty"`
	MimeType        string         `json:"mime_type"`
	UploadTimestamp string         `json:"upload_timestamp"`
	SessionID       string         `json:"session_id"`
}

// SessionFiles is the listing returned by ListSessionFiles.
type SessionFiles struct {
	Files []RemoteFile     `json:"files"`
	Stats map[string]int64 `json:"stats"`
}

// UploadedFiles splits the listing into registry partitions.
func (s SessionFiles) UploadedFiles() model.UploadedFiles {
	out := model.UploadedFiles{CodeFiles: []model.UploadedFile{}, SRSFiles: []model.UploadedFile{}}
	for _, f := range s.Files {
		uf := model.UploadedFile{
			ID:           f.ID,
			Name:         f.Name,
			Size:         f.Size,
			MimeType:     f.MimeType,
			LastModified: parseTime(f.UploadTimestamp),
			Content:      f.Content,
		}
		if f.Type == model.KindSRS {
			out.SRSFiles = append(out.SRSFiles, uf)
		} else {
			out.CodeFiles = append(out.CodeFiles, uf)
		}
	}
	return out
}

// parseTime accepts RFC 3339 and the zone-less ISO form the backend emits
// for UTC timestamps.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SRSValidation reports whether an uploaded SRS looks like a requirements
// document.
type SRSValidation struct {
	IsValidSRS    bool    `json:"is_valid_srs"`
	Confidence    float64 `json:"confidence"`
	KeywordsFound int     `json:"keywords_found"`
	Message       string  `json:"message"`
}

// RemoteChecklistItem is a checklist item on the wire.
type RemoteChecklistItem struct {
	ID                  string         `json:"id"`
	Category            string         `json:"category"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Severity            model.Severity `json:"severity"`
	Checked             bool           `json:"checked"`
	Automated           bool           `json:"automated"`
	Items               []string       `json:"items"`
	RelevantRequirement string         `json:"relevant_requirement,omitempty"`
}

// ChecklistResponse is returned by GenerateChecklist.
type ChecklistResponse struct {
	Checklist []RemoteChecklistItem `json:"checklist"`
	Message   string                `json:"message"`
}

// Items converts the response to checklist items.
func (r ChecklistResponse) Items() []model.ChecklistItem {
	out := make([]model.ChecklistItem, 0, len(r.Checklist))
	for _, it := range r.Checklist {
		out = append(out, model.ChecklistItem{
			ID:                  it.ID,
			Category:            it.Category,
			Title:               it.Title,
			Description:         it.Description,
			Severity:            it.Severity,
			Checked:             it.Checked,
			Automated:           it.Automated,
			Items:               it.Items,
			RelevantRequirement: it.RelevantRequirement,
		})
	}
	return out
}

// RemoteIssue is a code issue on the wire.
type RemoteIssue struct {
	ID          string         `json:"id"`
	Line        int            `json:"line"`
	Type        string         `json:"type"`
	Severity    model.Severity `json:"severity"`
	Message     string         `json:"message"`
	Description string         `json:"description"`
	Suggestion  string         `json:"suggestion"`
	AutoFixable bool           `json:"auto_fixable"`
}

func (i RemoteIssue) issue() model.Issue {
	return model.Issue{
		ID:          i.ID,
		Line:        i.Line,
		Type:        i.Type,
		Severity:    i.Severity,
		Message:     i.Message,
		Description: i.Description,
		Suggestion:  i.Suggestion,
		AutoFixable: i.AutoFixable,
	}
}

// FileAnalysis is the per-file part of an analysis.
type FileAnalysis struct {
	FileName string        `json:"file_name"`
	Language string        `json:"language"`
	Size     int64         `json:"size"`
	Issues   []RemoteIssue `json:"issues"`
	Status   string        `json:"status"`
}

// AnalysisResults is the stored result of the most recent analysis.
type AnalysisResults struct {
	ID           string                `json:"id"`
	SessionID    string                `json:"session_id"`
	Summary      map[string]any        `json:"summary"`
	FileAnalyses []FileAnalysis        `json:"file_analyses"`
	Checklist    []RemoteChecklistItem `json:"checklist"`
	ModelUsed    string                `json:"model_used"`
	Status       string                `json:"status"`
}

// Result converts the backend analysis into the session model. Files are
// placed in a folder tree built from their slash-separated names.
func (r AnalysisResults) Result() *model.AnalysisResult {
	res := &model.AnalysisResult{ModelUsed: r.ModelUsed}
	for _, fa := range r.FileAnalyses {
		issues := make([]model.Issue, 0, len(fa.Issues))
		for _, is := range fa.Issues {
			issues = append(issues, is.issue())
		}
		res.FileStructure = model.InsertFile(res.FileStructure, strings.Split(fa.FileName, "/"), model.FileNode{
			Type:     model.NodeFile,
			Language: fa.Language,
			Size:     fa.Size,
			Issues:   issues,
		})
	}
	// The backend summary mixes ints and floats; recount from the tree.
	res.Summary = res.Summarize()
	return res
}

// RemoteChange is a code change on the wire.
type RemoteChange struct {
	ID          string           `json:"id"`
	Type        model.ChangeType `json:"type"`
	Line        int              `json:"line"`
	Content     string           `json:"content"`
	OldContent  string           `json:"old_content,omitempty"`
	Description string           `json:"description"`
}

func (c RemoteChange) change() model.Change {
	ch := model.Change{
		Type:        c.Type,
		Line:        c.Line,
		Content:     c.Content,
		OldContent:  c.OldContent,
		Description: c.Description,
	}
	if c.Type != model.ChangeDeletion {
		ch.NewContent = c.Content
	}
	return ch
}

// FixRequest asks the backend to rewrite a file.
type FixRequest struct {
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
	IssueID   string `json:"issue_id,omitempty"`
	FixAll    bool   `json:"fix_all"`
	Model     string `json:"model"`
}

// FixResponse carries the rewritten file.
type FixResponse struct {
	FileName        string         `json:"file_name"`
	ModifiedContent string         `json:"modified_content"`
	Changes         []RemoteChange `json:"changes"`
	IssuesFixed     []string       `json:"issues_fixed"`
}

// Record converts the fix into a modified-file record against original.
// When the backend lists no changes they are computed from the two texts.
func (f FixResponse) Record(original string) model.ModifiedFileRecord {
	changes := make([]model.Change, 0, len(f.Changes))
	for _, c := range f.Changes {
		changes = append(changes, c.change())
	}
	if len(changes) == 0 && original != f.ModifiedContent {
		changes = diff.Changes(original, f.ModifiedContent)
	}
	return model.ModifiedFileRecord{
		FileName:    f.FileName,
		Original:    original,
		Modified:    f.ModifiedContent,
		Changes:     changes,
		IssuesFixed: f.IssuesFixed,
		Status:      model.RecordModified,
	}
}

// RemoteModifiedFile is a stored modified file.
type RemoteModifiedFile struct {
	ID              string         `json:"id"`
	FileName        string         `json:"file_name"`
	OriginalContent string         `json:"original_content"`
	ModifiedContent string         `json:"modified_content"`
	Changes         []RemoteChange `json:"changes"`
	IssuesFixed     []string       `json:"issues_fixed"`
	ReviewStatus    string         `json:"review_status"`
}

// ModifiedFiles is the response of ModifiedFiles.
type ModifiedFiles struct {
	Files []RemoteModifiedFile `json:"modified_files"`
}

// Records converts the stored files into records keyed by file name.
func (m ModifiedFiles) Records() map[string]model.ModifiedFileRecord {
	out := make(map[string]model.ModifiedFileRecord, len(m.Files))
	for _, f := range m.Files {
		fix := FixResponse{
			FileName:        f.FileName,
			ModifiedContent: f.ModifiedContent,
			Changes:         f.Changes,
			IssuesFixed:     f.IssuesFixed,
		}
		out[f.FileName] = fix.Record(f.OriginalContent)
	}
	return out
}

// ReviewUpdate records a review decision on the backend.
type ReviewUpdate struct {
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
	ChangeID  string `json:"change_id,omitempty"`
	Status    string `json:"status"`
	AcceptAll bool   `json:"accept_all"`
}

// ReviewAck acknowledges a review update.
type ReviewAck struct {
	Message        string `json:"message"`
	UpdatedChanges int    `json:"updated_changes"`
}

// AnalysisStatus is returned by ComprehensiveAnalysis.
type AnalysisStatus struct {
	Status               string          `json:"status"`
	Message              string          `json:"message"`
	Summary              json.RawMessage `json:"summary"`
	TraceabilityCoverage float64         `json:"traceability_coverage"`
	HealthScore          float64         `json:"health_score"`
}

// Mapping links one requirement to the code implementing it.
type Mapping struct {
	RequirementID   string   `json:"requirement_id"`
	RequirementText string   `json:"requirement_text"`
	CodeFiles       []string `json:"code_files"`
	Confidence      float64  `json:"confidence"`
	Status          string   `json:"status"`
}

// Traceability is the requirements traceability matrix.
type Traceability struct {
	Mappings   []Mapping `json:"mappings"`
	Statistics struct {
		TotalMappings      int     `json:"total_mappings"`
		UniqueRequirements int     `json:"unique_requirements"`
		CoveragePercentage float64 `json:"coverage_percentage"`
	} `json:"statistics"`
}

// HealthMetric is the health of one file.
type HealthMetric struct {
	FileName        string   `json:"file_name"`
	Complexity      float64  `json:"complexity"`
	Maintainability float64  `json:"maintainability"`
	HealthGrade     string   `json:"health_grade"`
	Issues          []string `json:"issues"`
}

// Health is the code health report.
type Health struct {
	Metrics []HealthMetric `json:"metrics"`
	Summary struct {
		TotalFiles         int     `json:"total_files"`
		AverageComplexity  float64 `json:"average_complexity"`
		OverallHealthGrade string  `json:"overall_health_grade"`
	} `json:"summary"`
}

// ChatReply is the assistant's answer.
type ChatReply struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// Conversation is one stored chat exchange.
type Conversation struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// ChatHistory lists previous exchanges.
type ChatHistory struct {
	Conversations []Conversation `json:"conversations"`
}

// ReportOptions selects the sections of a comprehensive report.
type ReportOptions struct {
	IncludeTraceability  bool
	IncludeHealthMetrics bool
	Format               string
}

// Report is the AI-written comprehensive report.
type Report struct {
	Report struct {
		ExecutiveSummary string `json:"executive_summary"`
		DetailedFindings string `json:"detailed_findings"`
		Recommendations  string `json:"recommendations"`
	} `json:"report"`
	GeneratedAt string `json:"generated_at"`
}

// Dashboard aggregates the session's analysis artifacts. Sections are kept
// raw so the dashboard can render whatever the backend returns.
type Dashboard struct {
	SessionInfo struct {
		ID string `json:"id"`
	} `json:"session_info"`
	AnalysisSummary   json.RawMessage `json:"analysis_summary"`
	TraceabilityStats json.RawMessage `json:"traceability_stats"`
	HealthOverview    json.RawMessage `json:"health_overview"`
}

// SuggestionRequest asks for completions at a cursor position.
type SuggestionRequest struct {
	FileName       string
	CodeSnippet    string
	CursorPosition int
}

// Suggestions are code completions for a snippet.
type Suggestions struct {
	Suggestions []json.RawMessage `json:"suggestions"`
	Context     json.RawMessage   `json:"context"`
}
