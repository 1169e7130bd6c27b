package session

import (
	"slices"

	"github.com/sprite-ai/crdash/internal/model"
)

// Apply returns the state that results from applying a to s. It is pure
// and total: unknown or nil actions return s unchanged, and s itself is
// never modified.
func Apply(s State, a Action) State {
	next, ok := reduce(s, a)
	if !ok {
		return s
	}
	next.ReviewProgress = settleProgress(next)
	return next
}

func reduce(s State, a Action) (State, bool) {
	switch a := a.(type) {
	case SetUploadedFiles:
		s.UploadedFiles = model.UploadedFiles{
			CodeFiles: cloneFiles(a.Files.CodeFiles),
			SRSFiles:  cloneFiles(a.Files.SRSFiles),
		}

	case SetAnalysisResults:
		s.AnalysisResults = a.Result
		s.IsAnalyzing = false

	case SetChecklist:
		s.Checklist = slices.Clone(a.Items)

	case UpdateChecklistItem:
		idx := -1
		for i, it := range s.Checklist {
			if it.ID == a.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s, false
		}
		items := slices.Clone(s.Checklist)
		items[idx] = a.Updates.Apply(items[idx])
		s.Checklist = items

	case SetModifiedCode:
		merged := make(map[string]model.ModifiedFileRecord, len(s.ModifiedCode)+len(a.Records))
		for k, v := range s.ModifiedCode {
			merged[k] = v
		}
		for k, v := range a.Records {
			if v.FileName == "" {
				v.FileName = k
			}
			merged[k] = v
		}
		s.ModifiedCode = merged

	case UpdateReviewProgress:
		p := s.ReviewProgress
		if a.Progress.TotalChanges != nil {
			p.TotalChanges = *a.Progress.TotalChanges
		}
		if a.Progress.AcceptedChanges != nil {
			p.AcceptedChanges = *a.Progress.AcceptedChanges
		}
		if a.Progress.RejectedChanges != nil {
			p.RejectedChanges = *a.Progress.RejectedChanges
		}
		if a.Progress.PendingChanges != nil {
			p.PendingChanges = *a.Progress.PendingChanges
		}
		s.ReviewProgress = p

	case SetSelectedModel:
		s.SelectedModel = a.Model

	case SetAnalyzing:
		s.IsAnalyzing = a.Analyzing

	case ClearAllData:
		return Initial(), true

	case ToggleLine:
		s.Ledger = s.Ledger.ToggleLine(a.File, a.Line)

	case AcceptFile:
		s.Ledger = s.Ledger.AcceptFile(a.File, s.ModifiedCode[a.File].ChangeLines())

	case RejectFile:
		s.Ledger = s.Ledger.RejectFile(a.File, s.ModifiedCode[a.File].ChangeLines())

	case SetSessionID:
		s.SessionID = a.ID

	case SetFileContent:
		files, ok := withContent(s.UploadedFiles.CodeFiles, a.FileID, a.Content)
		if ok {
			s.UploadedFiles.CodeFiles = files
			break
		}
		files, ok = withContent(s.UploadedFiles.SRSFiles, a.FileID, a.Content)
		if !ok {
			// File was removed before its read finished.
			return s, false
		}
		s.UploadedFiles.SRSFiles = files

	case RemoveFile:
		s.UploadedFiles = model.UploadedFiles{
			CodeFiles: without(s.UploadedFiles.CodeFiles, a.FileID),
			SRSFiles:  without(s.UploadedFiles.SRSFiles, a.FileID),
		}

	default:
		return s, false
	}
	return s, true
}

// settleProgress derives progress from the ledger whenever there are change
// slots to count. Without records, caller-supplied figures are kept but
// normalized so the counts add up.
func settleProgress(s State) model.ReviewProgress {
	if len(s.ModifiedCode) > 0 {
		return Derive(s.ModifiedCode, s.Ledger)
	}
	return normalize(s.ReviewProgress)
}

func cloneFiles(in []model.UploadedFile) []model.UploadedFile {
	return slices.Clone(in)
}

func withContent(files []model.UploadedFile, id, content string) ([]model.UploadedFile, bool) {
	for i, f := range files {
		if f.ID != id {
			continue
		}
		out := cloneFiles(files)
		c := content
		out[i].Content = &c
		return out, true
	}
	return nil, false
}

func without(files []model.UploadedFile, id string) []model.UploadedFile {
	out := make([]model.UploadedFile, 0, len(files))
	for _, f := range files {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}
