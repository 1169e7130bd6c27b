package session

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/crdash/internal/model"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(n int) *int       { return &n }

func twoLineRecord() map[string]model.ModifiedFileRecord {
	return map[string]model.ModifiedFileRecord{
		"f.js": {Changes: []model.Change{
			{Type: model.ChangeModification, Line: 1},
			{Type: model.ChangeAddition, Line: 2},
		}},
	}
}

func TestApplyUnknownActionIsNoop(t *testing.T) {
	s := Apply(Initial(), SetSelectedModel{Model: "claude"})

	assert.Equal(t, s, Apply(s, nil))
}

func TestSetUploadedFilesLastWriteWins(t *testing.T) {
	payloads := []model.UploadedFiles{
		{CodeFiles: []model.UploadedFile{{ID: "1", Name: "a.py"}}},
		{SRSFiles: []model.UploadedFile{{ID: "2", Name: "req.md"}}},
		{
			CodeFiles: []model.UploadedFile{{ID: "3", Name: "b.go"}, {ID: "4", Name: "b.go"}},
			SRSFiles:  []model.UploadedFile{},
		},
	}

	s := Initial()
	for _, p := range payloads {
		s = Apply(s, SetUploadedFiles{Files: p})
		assert.Equal(t, p, s.UploadedFiles)
	}
}

func TestSetUploadedFilesDoesNotAliasPayload(t *testing.T) {
	files := []model.UploadedFile{{ID: "1", Name: "a.py"}}
	s := Apply(Initial(), SetUploadedFiles{Files: model.UploadedFiles{CodeFiles: files}})

	files[0].Name = "changed.py"

	assert.Equal(t, "a.py", s.UploadedFiles.CodeFiles[0].Name)
}

func TestSetAnalysisResultsClearsAnalyzing(t *testing.T) {
	s := Apply(Initial(), SetAnalyzing{Analyzing: true})
	require.True(t, s.IsAnalyzing)

	res := &model.AnalysisResult{Summary: model.Summary{TotalFiles: 3}}
	s = Apply(s, SetAnalysisResults{Result: res})

	assert.False(t, s.IsAnalyzing)
	assert.Same(t, res, s.AnalysisResults)
}

func TestUpdateChecklistItem(t *testing.T) {
	items := []model.ChecklistItem{
		{ID: "a", Title: "Validate input"},
		{ID: "b", Title: "Handle errors"},
	}
	s := Apply(Initial(), SetChecklist{Items: items})

	s = Apply(s, UpdateChecklistItem{ID: "b", Updates: model.ChecklistUpdate{Checked: boolPtr(true)}})

	assert.False(t, s.Checklist[0].Checked)
	assert.True(t, s.Checklist[1].Checked)
	assert.Equal(t, "Handle errors", s.Checklist[1].Title)
	assert.False(t, items[1].Checked, "payload must not be mutated")
	assert.Equal(t, 1, s.CheckedCount())
}

func TestUpdateChecklistItemAbsentID(t *testing.T) {
	s := Apply(Initial(), SetChecklist{Items: []model.ChecklistItem{{ID: "a", Title: "x"}}})

	next := Apply(s, UpdateChecklistItem{ID: "missing", Updates: model.ChecklistUpdate{Title: strPtr("y")}})

	assert.Equal(t, s.Checklist, next.Checklist)
	assert.Equal(t, s, next)
}

func TestSetModifiedCodeMerges(t *testing.T) {
	s := Apply(Initial(), SetModifiedCode{Records: twoLineRecord()})
	s = Apply(s, SetModifiedCode{Records: map[string]model.ModifiedFileRecord{
		"g.py": {Changes: []model.Change{{Line: 7}}},
	}})

	require.Len(t, s.ModifiedCode, 2)
	assert.Equal(t, "f.js", s.ModifiedCode["f.js"].FileName)
	assert.Equal(t, "g.py", s.ModifiedCode["g.py"].FileName)
	assert.Equal(t, 3, s.ReviewProgress.TotalChanges)
	assert.Equal(t, []string{"f.js", "g.py"}, s.FileNames())
}

func TestSetModifiedCodeLeavesPreviousSnapshot(t *testing.T) {
	before := Apply(Initial(), SetModifiedCode{Records: twoLineRecord()})
	_ = Apply(before, SetModifiedCode{Records: map[string]model.ModifiedFileRecord{"g.py": {}}})

	assert.Len(t, before.ModifiedCode, 1)
}

func TestToggleLineScenario(t *testing.T) {
	s := Apply(Initial(), SetModifiedCode{Records: twoLineRecord()})
	require.Equal(t, 2, s.ReviewProgress.TotalChanges)

	s = Apply(s, ToggleLine{File: "f.js", Line: 1})
	assert.Equal(t, model.DecisionAccepted, s.Ledger.Line("f.js", 1))

	s = Apply(s, ToggleLine{File: "f.js", Line: 1})
	assert.Equal(t, model.DecisionRejected, s.Ledger.Line("f.js", 1))

	assert.Equal(t, model.ReviewProgress{
		TotalChanges:    2,
		AcceptedChanges: 0,
		RejectedChanges: 1,
		PendingChanges:  1,
	}, s.ReviewProgress)
}

func TestAcceptFileThenToggleLine(t *testing.T) {
	s := Apply(Initial(), SetModifiedCode{Records: twoLineRecord()})

	s = Apply(s, AcceptFile{File: "f.js"})
	assert.Equal(t, model.DecisionAccepted, s.Ledger.File("f.js"))
	assert.Equal(t, 2, s.ReviewProgress.AcceptedChanges)

	s = Apply(s, ToggleLine{File: "f.js", Line: 2})

	assert.Equal(t, model.DecisionRejected, s.Ledger.Line("f.js", 2))
	assert.Equal(t, model.DecisionAccepted, s.Ledger.Line("f.js", 1))
	// The file badge is not re-synced by line toggles.
	assert.Equal(t, model.DecisionAccepted, s.Ledger.File("f.js"))
	assert.Equal(t, model.ReviewProgress{TotalChanges: 2, AcceptedChanges: 1, RejectedChanges: 1}, s.ReviewProgress)
}

func TestRejectFileCascadesToKnownLines(t *testing.T) {
	s := Apply(Initial(), SetModifiedCode{Records: twoLineRecord()})
	s = Apply(s, ToggleLine{File: "f.js", Line: 40}) // not a change slot

	s = Apply(s, RejectFile{File: "f.js"})

	assert.Equal(t, []int{1, 2, 40}, s.Ledger.KnownLines("f.js"))
	for _, line := range []int{1, 2, 40} {
		assert.Equal(t, model.DecisionRejected, s.Ledger.Line("f.js", line))
	}
	assert.Equal(t, model.ReviewProgress{TotalChanges: 2, RejectedChanges: 2}, s.ReviewProgress)
}

func TestDeletionAndAdditionShareLineKey(t *testing.T) {
	// Deletions are keyed by the old line, additions by the new one, so a
	// deletion of old line 2 and an addition at new line 2 are one slot.
	s := Apply(Initial(), SetModifiedCode{Records: map[string]model.ModifiedFileRecord{
		"f.py": {Changes: []model.Change{
			{Type: model.ChangeDeletion, Line: 2, Content: "old()"},
			{Type: model.ChangeAddition, Line: 2, Content: "new()"},
		}},
	}})

	s = Apply(s, ToggleLine{File: "f.py", Line: 2})

	assert.Equal(t, model.ReviewProgress{TotalChanges: 2, AcceptedChanges: 2}, s.ReviewProgress)
	assert.Equal(t, model.DecisionAccepted, s.FileDecision("f.py"))
}

func TestStateFileDecision(t *testing.T) {
	s := Apply(Initial(), SetModifiedCode{Records: twoLineRecord()})
	assert.Equal(t, model.DecisionPending, s.FileDecision("f.js"))

	s = Apply(s, ToggleLine{File: "f.js", Line: 1})
	assert.Equal(t, model.DecisionPending, s.FileDecision("f.js"), "one line undecided")

	s = Apply(s, ToggleLine{File: "f.js", Line: 2})
	assert.Equal(t, model.DecisionAccepted, s.FileDecision("f.js"), "every line accepted")

	s = Apply(s, RejectFile{File: "f.js"})
	assert.Equal(t, model.DecisionRejected, s.FileDecision("f.js"))

	s = Apply(s, ToggleLine{File: "f.js", Line: 1})
	assert.Equal(t, model.DecisionRejected, s.FileDecision("f.js"), "badge wins over mixed lines")

	assert.Equal(t, model.DecisionPending, s.FileDecision("missing.js"))
}

func TestUpdateReviewProgressWithoutRecords(t *testing.T) {
	s := Apply(Initial(), UpdateReviewProgress{Progress: ProgressUpdate{
		TotalChanges:    intPtr(10),
		AcceptedChanges: intPtr(3),
		PendingChanges:  intPtr(99),
	}})

	assert.Equal(t, model.ReviewProgress{TotalChanges: 10, AcceptedChanges: 3, PendingChanges: 7}, s.ReviewProgress)
}

func TestUpdateReviewProgressOverriddenByLedger(t *testing.T) {
	s := Apply(Initial(), SetModifiedCode{Records: twoLineRecord()})

	s = Apply(s, UpdateReviewProgress{Progress: ProgressUpdate{AcceptedChanges: intPtr(50)}})

	assert.Equal(t, model.ReviewProgress{TotalChanges: 2, PendingChanges: 2}, s.ReviewProgress)
}

func TestFileContentAndRemoval(t *testing.T) {
	s := Apply(Initial(), SetUploadedFiles{Files: model.UploadedFiles{
		CodeFiles: []model.UploadedFile{{ID: "c1", Name: "a.py"}},
		SRSFiles:  []model.UploadedFile{{ID: "s1", Name: "req.md"}},
	}})

	s = Apply(s, SetFileContent{FileID: "s1", Content: "# Requirements"})
	f, kind, ok := s.FindFile("s1")
	require.True(t, ok)
	assert.Equal(t, model.KindSRS, kind)
	require.True(t, f.HasContent())
	assert.Equal(t, "# Requirements", *f.Content)

	s = Apply(s, RemoveFile{FileID: "c1"})
	_, _, ok = s.FindFile("c1")
	assert.False(t, ok)

	// A read that finishes after removal is dropped.
	next := Apply(s, SetFileContent{FileID: "c1", Content: "print(1)"})
	assert.Equal(t, s, next)
}

func TestClearAllDataReturnsInitial(t *testing.T) {
	s := Initial()
	actions := []Action{
		SetUploadedFiles{Files: model.UploadedFiles{CodeFiles: []model.UploadedFile{{ID: "1"}}}},
		SetAnalysisResults{Result: &model.AnalysisResult{}},
		SetChecklist{Items: []model.ChecklistItem{{ID: "a"}}},
		SetModifiedCode{Records: twoLineRecord()},
		AcceptFile{File: "f.js"},
		SetSelectedModel{Model: "claude"},
		SetAnalyzing{Analyzing: true},
		SetSessionID{ID: "abc"},
	}
	for _, a := range actions {
		s = Apply(s, a)
		assert.Equal(t, Initial(), Apply(s, ClearAllData{}), "after %s", a.Type())
	}
}

func randomAction(r *rand.Rand) Action {
	files := []string{"f.js", "g.py", "h.go"}
	file := files[r.IntN(len(files))]
	switch r.IntN(7) {
	case 0:
		n := r.IntN(4)
		changes := make([]model.Change, n)
		for i := range changes {
			changes[i] = model.Change{Line: r.IntN(6) + 1}
		}
		return SetModifiedCode{Records: map[string]model.ModifiedFileRecord{file: {Changes: changes}}}
	case 1:
		return ToggleLine{File: file, Line: r.IntN(6) + 1}
	case 2:
		return AcceptFile{File: file}
	case 3:
		return RejectFile{File: file}
	case 4:
		return UpdateReviewProgress{Progress: ProgressUpdate{
			TotalChanges:    intPtr(r.IntN(20) - 5),
			AcceptedChanges: intPtr(r.IntN(20) - 5),
			RejectedChanges: intPtr(r.IntN(20) - 5),
			PendingChanges:  intPtr(r.IntN(20) - 5),
		}}
	case 5:
		return ClearAllData{}
	default:
		return SetSelectedModel{Model: file}
	}
}

func TestProgressAlwaysAddsUp(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for run := 0; run < 200; run++ {
		s := Initial()
		for step := 0; step < 30; step++ {
			a := randomAction(r)
			s = Apply(s, a)
			p := s.ReviewProgress
			require.Equal(t, p.TotalChanges, p.AcceptedChanges+p.RejectedChanges+p.PendingChanges,
				"run %d step %d after %s: %+v", run, step, a.Type(), p)
			require.GreaterOrEqual(t, p.PendingChanges, 0)
		}
	}
}
