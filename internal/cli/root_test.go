package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sprite-ai/crdash/internal/analysis"
	"github.com/sprite-ai/crdash/internal/config"
	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/report"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "review", "upload", "analyze", "chat", "report", "download", "version"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	if version != "dev" {
		t.Errorf("expected default version %q, got %q", "dev", version)
	}
}

// execute runs the root command with a throwaway config file.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("model: gpt-4o\nlog:\n  level: error\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--config", cfgPath))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRangeBase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"HEAD~3..HEAD", "HEAD~3"},
		{"main..feature", "main"},
		{"..feature", "HEAD"},
		{"HEAD", "HEAD"},
	}
	for _, tt := range tests {
		if got := rangeBase(tt.in); got != tt.want {
			t.Errorf("rangeBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCandidatesWalksDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("app.py", "print('hi')\n")
	write("pkg/util.go", "package pkg\n")
	write("notes.bin", "\x00\x01")
	write(".git/config.py", "x = 1\n")

	cands, err := candidates([]string{dir}, model.KindCode)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	var names []string
	for _, c := range cands {
		names = append(names, c.Name)
	}
	got := strings.Join(names, ",")
	if got != "app.py,pkg/util.go" {
		t.Errorf("names = %q, want %q", got, "app.py,pkg/util.go")
	}
}

func TestCandidatesKeepsNamedFiles(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tool.exe")
	if err := os.WriteFile(p, []byte("MZ"), 0o644); err != nil {
		t.Fatal(err)
	}
	cands, err := candidates([]string{p}, model.KindCode)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(cands) != 1 || cands[0].Name != "tool.exe" {
		t.Errorf("expected the named file to be kept, got %+v", cands)
	}
}

func TestCandidatesMissingPath(t *testing.T) {
	if _, err := candidates([]string{filepath.Join(t.TempDir(), "nope")}, model.KindCode); err == nil {
		t.Error("expected an error for a missing path")
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, config.LogConfig{Level: "info", Format: "json"})
	l.Debug("hidden")
	l.Info("shown", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("record = %v", rec)
	}
}

func TestPrintFindings(t *testing.T) {
	results := &analysis.Results{Findings: []analysis.Finding{
		{Pass: "security", File: "app.py", Line: 3, Severity: model.SeverityHigh, Message: "eval of input"},
		{Pass: "anti_patterns", File: "app.py", Severity: model.SeverityLow, Message: "long function"},
	}}

	var buf bytes.Buffer
	printFindings(&buf, 1, results)
	out := buf.String()

	for _, want := range []string{
		"1 file(s) analyzed",
		"1 high, 1 low",
		"! [security] app.py:3: eval of input",
		"- [anti_patterns] app.py: long function",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFindingsError(t *testing.T) {
	err := &FindingsError{Count: 2, Min: model.SeverityHigh}
	if got := err.Error(); got != "2 issue(s) at or above high" {
		t.Errorf("Error() = %q", got)
	}
}

func TestReportFormat(t *testing.T) {
	tests := []struct {
		flag, output string
		want         report.Format
	}{
		{"", "", report.FormatMarkdown},
		{"", "out.xlsx", report.FormatXLSX},
		{"json", "out.xlsx", report.FormatJSON},
		{"html", "", report.FormatHTML},
	}
	for _, tt := range tests {
		got, err := reportFormat(tt.flag, tt.output)
		if err != nil {
			t.Errorf("reportFormat(%q, %q): %v", tt.flag, tt.output, err)
			continue
		}
		if got != tt.want {
			t.Errorf("reportFormat(%q, %q) = %q, want %q", tt.flag, tt.output, got, tt.want)
		}
	}
	if _, err := reportFormat("pdf", ""); err == nil {
		t.Error("expected an error for pdf")
	}
}

func TestReadState(t *testing.T) {
	st, err := readState(strings.NewReader(`{"selectedModel":"claude-3","sessionId":"s-1"}`), "-")
	if err != nil {
		t.Fatalf("readState: %v", err)
	}
	if st.SelectedModel != "claude-3" || st.SessionID != "s-1" {
		t.Errorf("state = %+v", st)
	}
	if st.ModifiedCode == nil {
		t.Error("missing fields should keep their initial values")
	}

	if _, err := readState(strings.NewReader("{"), "-"); err == nil {
		t.Error("expected a decode error")
	}
}

func TestReportCommandFromState(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	if err := os.WriteFile(statePath, []byte(`{"selectedModel":"claude-3","sessionId":"s-1"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "report", "--state", statePath, "--format", "md")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{"# Code Review Report", "for session `s-1`", "using claude-3."} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyzeCommandFailOn(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "handler.py"), []byte("try:\n    run()\nexcept:\n    pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "analyze", dir, "--fail-on", "medium")
	var fe *FindingsError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FindingsError, got %v", err)
	}
	if fe.Count != 1 {
		t.Errorf("count = %d, want 1", fe.Count)
	}
	if !strings.Contains(out, "handler.py") {
		t.Errorf("output missing file name:\n%s", out)
	}
}
