package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/crdash/internal/analysis"
	"github.com/sprite-ai/crdash/internal/client"
	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|dir]...",
	Short: "Analyze code locally or on the backend",
	Long: `Run the offline analyzer over local files, or with --session run the
backend's comprehensive analysis and print its results.

With --fail-on the command fails when an issue of at least that severity is
found, which makes it usable in CI and pre-commit hooks.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("session", "", "analyze a backend session instead of local files")
	analyzeCmd.Flags().StringP("format", "f", "text", "output format: text, json")
	analyzeCmd.Flags().StringSlice("skip", nil, "analysis passes to skip (security, anti_patterns)")
	analyzeCmd.Flags().String("fail-on", "", "fail if an issue of this severity or worse is found")
	analyzeCmd.Flags().Bool("checklist", false, "also generate the requirement checklist (with --session)")
}

// FindingsError is returned when --fail-on is exceeded.
type FindingsError struct {
	Count int
	Min   model.Severity
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d issue(s) at or above %s", e.Count, e.Min)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}

	var failOn *model.Severity
	if s, _ := cmd.Flags().GetString("fail-on"); s != "" {
		sev, err := model.ParseSeverity(s)
		if err != nil {
			return err
		}
		failOn = &sev
	}

	if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
		return analyzeRemote(cmd, sessionID, format, failOn)
	}
	if len(args) == 0 {
		return fmt.Errorf("no files given (or use --session)")
	}

	store := session.NewStore(logger)
	if _, err := registerLocal(cmd.Context(), store, args, model.KindCode); err != nil {
		return err
	}
	files := store.Snapshot().UploadedFiles.CodeFiles

	skip, _ := cmd.Flags().GetStringSlice("skip")
	for _, name := range skip {
		if _, ok := analysis.PassNames[name]; !ok {
			return fmt.Errorf("unknown analysis pass %q", name)
		}
	}

	out := cmd.OutOrStdout()
	results := analysis.Run(analysis.SourcesFrom(files), skip)
	if format == "json" {
		if err := writeJSON(out, analysis.Analyze(files, skip)); err != nil {
			return err
		}
	} else {
		printFindings(out, len(files), results)
	}

	if failOn != nil {
		if n := len(results.AtLeast(*failOn)); n > 0 {
			return &FindingsError{Count: n, Min: *failOn}
		}
	}
	return nil
}

func analyzeRemote(cmd *cobra.Command, sessionID, format string, failOn *model.Severity) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	c := newClient()

	status, err := c.ComprehensiveAnalysis(ctx, sessionID, cfg.Model)
	if err != nil {
		return fmt.Errorf("comprehensive analysis: %s", client.UserMessage(err))
	}
	logger.Info("analysis finished",
		slog.String("status", status.Status),
		slog.Float64("health_score", status.HealthScore))

	remote, err := c.AnalysisResults(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fetching results: %s", client.UserMessage(err))
	}
	res := remote.Result()

	var checklist []model.ChecklistItem
	if want, _ := cmd.Flags().GetBool("checklist"); want {
		cl, err := c.GenerateChecklist(ctx, sessionID, cfg.Model)
		if err != nil {
			return fmt.Errorf("generating checklist: %s", client.UserMessage(err))
		}
		checklist = cl.Items()
	}

	if format == "json" {
		if err := writeJSON(out, struct {
			Result    *model.AnalysisResult `json:"result"`
			Checklist []model.ChecklistItem `json:"checklist,omitempty"`
		}{res, checklist}); err != nil {
			return err
		}
	} else {
		s := res.Summary
		fmt.Fprintf(out, "Model: %s\n", res.ModelUsed)
		fmt.Fprintf(out, "%d file(s), %d issue(s): %d critical, %d high, %d medium, %d low (score %d)\n",
			s.TotalFiles, s.TotalIssues, s.CriticalIssues, s.HighIssues, s.MediumIssues, s.LowIssues, s.OverallScore)
		if len(checklist) > 0 {
			fmt.Fprintln(out, "\nChecklist:")
			for _, it := range checklist {
				fmt.Fprintf(out, "  [%s] %s (%s)\n", checkMark(it.Checked), it.Title, it.Severity)
			}
		}
	}

	if failOn != nil {
		n := 0
		for _, f := range res.Files() {
			for _, is := range f.Node.Issues {
				if is.Severity >= *failOn {
					n++
				}
			}
		}
		if n > 0 {
			return &FindingsError{Count: n, Min: *failOn}
		}
	}
	return nil
}

func printFindings(w io.Writer, nFiles int, results *analysis.Results) {
	fmt.Fprintf(w, "%d file(s) analyzed\n", nFiles)
	fmt.Fprintf(w, "Analysis: %s\n\n", results.Summary())

	if len(results.Findings) == 0 {
		return
	}

	byFile := results.ByFile()
	for _, file := range sortedKeys(byFile) {
		fmt.Fprintf(w, "  %s\n", file)
		for _, f := range byFile[file] {
			loc := ""
			if f.Line > 0 {
				loc = fmt.Sprintf(":%d", f.Line)
			}
			fmt.Fprintf(w, "    %s [%s] %s%s: %s\n", severityIcon(f.Severity), f.Pass, file, loc, f.Message)
		}
		fmt.Fprintln(w)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func severityIcon(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "!!"
	case model.SeverityHigh:
		return "! "
	case model.SeverityMedium:
		return "* "
	default:
		return "- "
	}
}

func checkMark(b bool) string {
	if b {
		return "x"
	}
	return " "
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
