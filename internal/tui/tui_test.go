package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sprite-ai/crdash/internal/diff"
	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

const testDiff = `diff --git a/main.go b/main.go
index abc1234..def5678 100644
--- a/main.go
+++ b/main.go
@@ -1,5 +1,6 @@
 package main

 func main() {
-	println("hello")
+	println("hello world")
+	println("goodbye")
 }
diff --git a/util.go b/util.go
new file mode 100644
--- /dev/null
+++ b/util.go
@@ -0,0 +1,5 @@
+package main
+
+func add(a, b int) int {
+	return a + b
+}
`

const mainOriginal = "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n"

func setupStore(t *testing.T) *session.Store {
	t.Helper()
	recs, err := diff.ParsePatch(testDiff, func(name string) (string, bool) {
		return mainOriginal, name == "main.go"
	})
	if err != nil {
		t.Fatalf("ParsePatch failed: %v", err)
	}
	st := session.NewStore(nil)
	st.Dispatch(session.SetModifiedCode{Records: recs})
	return st
}

func setupModel(t *testing.T) (Model, *session.Store) {
	t.Helper()
	st := setupStore(t)
	m := New(st, diff.NewHighlighter(diff.DefaultStyle))
	// Simulate window size
	newM, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return newM.(Model), st
}

func press(m Model, r rune) Model {
	newM, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return newM.(Model)
}

func TestModelInit(t *testing.T) {
	m, _ := setupModel(t)

	if m.fileIndex != 0 || m.cursor != 0 {
		t.Errorf("expected first file and change, got %d/%d", m.fileIndex, m.cursor)
	}
	if strings.Join(m.files, ",") != "main.go,util.go" {
		t.Errorf("files = %v", m.files)
	}
	if len(m.rows) != 2 {
		t.Fatalf("expected 2 rows for main.go, got %d", len(m.rows))
	}
	if m.rows[0].Change.Type != model.ChangeModification || m.rows[1].Change.Type != model.ChangeAddition {
		t.Errorf("unexpected change types %s, %s", m.rows[0].Change.Type, m.rows[1].Change.Type)
	}
	if len(m.rows[0].Tokens) == 0 {
		t.Error("expected highlighted tokens")
	}
}

func TestNavigation(t *testing.T) {
	m, _ := setupModel(t)

	m = press(m, 'j')
	if m.cursor != 1 {
		t.Errorf("expected cursor 1 after down, got %d", m.cursor)
	}
	// Move past end, should stay
	m = press(m, 'j')
	if m.cursor != 1 {
		t.Errorf("expected cursor 1 at end, got %d", m.cursor)
	}
	m = press(m, 'k')
	if m.cursor != 0 {
		t.Errorf("expected cursor 0 after up, got %d", m.cursor)
	}

	m = press(m, 'n')
	if m.fileIndex != 1 || len(m.rows) != 5 {
		t.Errorf("expected util.go with 5 rows, got index %d rows %d", m.fileIndex, len(m.rows))
	}
	m = press(m, 'n')
	if m.fileIndex != 1 {
		t.Errorf("expected fileIndex 1 at end, got %d", m.fileIndex)
	}
	m = press(m, 'N')
	if m.fileIndex != 0 || m.cursor != 0 {
		t.Errorf("expected first file after prev, got %d/%d", m.fileIndex, m.cursor)
	}
}

func TestToggleLine(t *testing.T) {
	m, st := setupModel(t)

	m = press(m, ' ')
	if d := st.Snapshot().Ledger.Line("main.go", 4); d != model.DecisionAccepted {
		t.Errorf("expected accepted, got %s", d)
	}
	if m.rows[0].Decision != model.DecisionAccepted {
		t.Errorf("row not refreshed: %s", m.rows[0].Decision)
	}

	// Second toggle rejects; there is no way back to pending.
	m = press(m, ' ')
	if d := m.state.Ledger.Line("main.go", 4); d != model.DecisionRejected {
		t.Errorf("expected rejected, got %s", d)
	}
}

func TestAcceptRejectFile(t *testing.T) {
	m, st := setupModel(t)

	m = press(m, 'a')
	m = press(m, 'n')
	m = press(m, 'r')

	snap := st.Snapshot()
	if snap.Ledger.File("main.go") != model.DecisionAccepted {
		t.Errorf("main.go badge = %s", snap.Ledger.File("main.go"))
	}
	if snap.Ledger.File("util.go") != model.DecisionRejected {
		t.Errorf("util.go badge = %s", snap.Ledger.File("util.go"))
	}
	want := model.ReviewProgress{TotalChanges: 7, AcceptedChanges: 2, RejectedChanges: 5}
	if snap.ReviewProgress != want {
		t.Errorf("progress = %+v, want %+v", snap.ReviewProgress, want)
	}
	for _, r := range m.rows {
		if r.Decision != model.DecisionRejected {
			t.Errorf("util.go line %d = %s", r.Change.Line, r.Decision)
		}
	}
}

func TestExternalDispatch(t *testing.T) {
	m, st := setupModel(t)

	st.Dispatch(session.AcceptFile{File: "main.go"})
	if m.rows[0].Decision != model.DecisionPending {
		t.Fatal("model should not change before it is notified")
	}

	newM, _ := m.Update(stateChangedMsg{})
	m = newM.(Model)
	if m.rows[0].Decision != model.DecisionAccepted || m.rows[1].Decision != model.DecisionAccepted {
		t.Errorf("rows not refreshed: %s %s", m.rows[0].Decision, m.rows[1].Decision)
	}
}

func TestResetClampsSelection(t *testing.T) {
	m, st := setupModel(t)
	m = press(m, 'n')

	st.Dispatch(session.ClearAllData{})
	newM, _ := m.Update(stateChangedMsg{})
	m = newM.(Model)

	if m.fileIndex != 0 || m.cursor != 0 || len(m.rows) != 0 {
		t.Errorf("expected empty selection, got file %d cursor %d rows %d", m.fileIndex, m.cursor, len(m.rows))
	}
	if !strings.Contains(m.View(), "No suggested changes") {
		t.Error("expected empty view")
	}
}

func TestView(t *testing.T) {
	m, _ := setupModel(t)
	m = press(m, ' ')

	view := m.View()
	for _, want := range []string{"main.go", "util.go", "File 1/2", "Change 1/2", "14% reviewed", "was: "} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m = press(m, '?')
	help := m.View()
	if !strings.Contains(help, "accept file") || !strings.Contains(help, "reject file") {
		t.Error("help view missing bindings")
	}
}

func TestViewBeforeResize(t *testing.T) {
	m := New(session.NewStore(nil), nil)
	if m.View() != "Loading..." {
		t.Errorf("unexpected view %q", m.View())
	}
}

func TestFindingAnnotation(t *testing.T) {
	st := session.NewStore(nil)
	content := "from util import helper\nhelper()\n"
	st.Dispatch(session.SetUploadedFiles{Files: model.UploadedFiles{
		CodeFiles: []model.UploadedFile{{ID: "f1", Name: "app.py", Content: &content}},
	}})
	st.Dispatch(session.SetModifiedCode{Records: map[string]model.ModifiedFileRecord{
		"util.py": {FileName: "util.py", Changes: []model.Change{
			{Type: model.ChangeDeletion, Line: 3, Content: "def helper():", OldContent: "def helper():"},
		}},
	}})

	m := New(st, nil)
	newM, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = newM.(Model)

	if len(m.rows) != 1 || m.rows[0].Finding == nil {
		t.Fatalf("expected an annotated row, got %+v", m.rows)
	}
	if m.rows[0].Finding.Severity != model.SeverityHigh {
		t.Errorf("severity = %s", m.rows[0].Finding.Severity)
	}
	if !strings.Contains(m.View(), "still referenced") {
		t.Error("finding message not shown")
	}
}

func TestOutcome(t *testing.T) {
	st := setupStore(t)
	st.Dispatch(session.ToggleLine{File: "main.go", Line: 4})
	st.Dispatch(session.RejectFile{File: "util.go"})
	o := Outcome{State: st.Snapshot()}

	want := "package main\n\nfunc main() {\n\tprintln(\"hello world\")\n}\n"
	if got := o.Merged("main.go"); got != want {
		t.Errorf("merged:\n%q\nwant:\n%q", got, want)
	}

	if d := o.FileDecision("main.go"); d != model.DecisionPending {
		t.Errorf("main.go with a pending line = %s", d)
	}
	if got := o.Files(model.DecisionRejected); len(got) != 1 || got[0] != "util.go" {
		t.Errorf("rejected files = %v", got)
	}

	patch, err := o.Patch()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(patch, "+\tprintln(\"hello world\")") || strings.Contains(patch, "goodbye") {
		t.Errorf("unexpected patch:\n%s", patch)
	}
	if strings.Contains(patch, "util.go") {
		t.Error("rejected file should not be in the patch")
	}

	msg := o.CommitMessage()
	if !strings.HasPrefix(msg, "Apply review suggestions to main.go") {
		t.Errorf("commit message = %q", msg)
	}
	if !strings.Contains(msg, "Accepted 1 of 7") || !strings.Contains(msg, "Rejected files:\n  - util.go") {
		t.Errorf("commit message = %q", msg)
	}

	dir := t.TempDir()
	written, err := o.Write(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 1 {
		t.Fatalf("written = %v", written)
	}
	data, err := os.ReadFile(filepath.Join(dir, "main.go"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want {
		t.Errorf("written content = %q", data)
	}

	if s := o.Summary(); !strings.Contains(s, "1 accepted") || !strings.Contains(s, "5 rejected") {
		t.Errorf("summary = %q", s)
	}
}

func TestOutcomeNothingAccepted(t *testing.T) {
	o := Outcome{State: setupStore(t).Snapshot()}

	if msg := o.CommitMessage(); msg != "" {
		t.Errorf("expected empty commit message, got %q", msg)
	}
	if patch, err := o.Patch(); err != nil || patch != "" {
		t.Errorf("expected empty patch, got %q, %v", patch, err)
	}
}

func TestOutcomeHunkOnlyPatch(t *testing.T) {
	const patch = `diff --git a/svc.go b/svc.go
index 1111111..2222222 100644
--- a/svc.go
+++ b/svc.go
@@ -40,3 +40,3 @@
 	a := 1
-	b := 2
+	b := 3
 	c := 4
`
	recs, err := diff.ParsePatch(patch, nil)
	if err != nil {
		t.Fatal(err)
	}
	st := session.NewStore(nil)
	st.Dispatch(session.SetModifiedCode{Records: recs})
	st.Dispatch(session.AcceptFile{File: "svc.go"})
	o := Outcome{State: st.Snapshot()}

	if got := o.Merged("svc.go"); got != "\ta := 1\n\tb := 3\n\tc := 4\n" {
		t.Errorf("merged = %q", got)
	}
	p, err := o.Patch()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p, "@@ -40,3 +40,3 @@") || !strings.Contains(p, "+\tb := 3") {
		t.Errorf("patch = %q", p)
	}
	if msg := o.CommitMessage(); !strings.Contains(msg, "Accepted 1 of 1") {
		t.Errorf("commit message = %q", msg)
	}

	written, err := o.Write(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 0 {
		t.Errorf("hunk-only file written: %v", written)
	}
	if got := o.Partial(); len(got) != 1 || got[0] != "svc.go" {
		t.Errorf("partial = %v", got)
	}
}
