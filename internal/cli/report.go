package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/crdash/internal/client"
	"github.com/sprite-ai/crdash/internal/report"
	"github.com/sprite-ai/crdash/internal/session"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a review report",
	Long: `Render the report of a review session.

With --state the report is built locally from a session snapshot (the body
of GET /api/state, or - for stdin). With --session the backend writes an
AI report instead.

Examples:
  curl -s localhost:6142/api/state | crdash report --state - -f md
  crdash report --state state.json -o review.xlsx
  crdash report --session abc123 --traceability --health`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("state", "", "session snapshot file, or - for stdin")
	reportCmd.Flags().String("session", "", "backend session for an AI-written report")
	reportCmd.Flags().StringP("format", "f", "", "output format: json, md, html, xlsx (default from --output, else md)")
	reportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	reportCmd.Flags().Bool("traceability", false, "include the traceability section (with --session)")
	reportCmd.Flags().Bool("health", false, "include code health metrics (with --session)")
}

func runReport(cmd *cobra.Command, args []string) error {
	statePath, _ := cmd.Flags().GetString("state")
	sessionID, _ := cmd.Flags().GetString("session")
	output, _ := cmd.Flags().GetString("output")

	switch {
	case statePath != "" && sessionID != "":
		return fmt.Errorf("--state and --session are mutually exclusive")
	case statePath == "" && sessionID == "":
		return fmt.Errorf("one of --state or --session is required")
	}

	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		defer f.Close()
		w = f
	}

	if sessionID != "" {
		return remoteReport(cmd, sessionID, w)
	}

	name, _ := cmd.Flags().GetString("format")
	format, err := reportFormat(name, output)
	if err != nil {
		return err
	}
	if format == report.FormatXLSX && output == "" {
		return fmt.Errorf("xlsx reports need --output")
	}

	st, err := readState(cmd.InOrStdin(), statePath)
	if err != nil {
		return err
	}
	return report.Render(w, report.Build(st, time.Now()), format)
}

// reportFormat picks the format from the flag, then the output extension.
func reportFormat(flag, output string) (report.Format, error) {
	if flag != "" {
		return report.ParseFormat(flag)
	}
	if ext := strings.TrimPrefix(filepath.Ext(output), "."); ext != "" {
		return report.ParseFormat(ext)
	}
	return report.FormatMarkdown, nil
}

func readState(stdin io.Reader, path string) (session.State, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return session.State{}, fmt.Errorf("reading state: %w", err)
		}
		defer f.Close()
		r = f
	}

	st := session.Initial()
	if err := json.NewDecoder(r).Decode(&st); err != nil {
		return session.State{}, fmt.Errorf("decoding state: %w", err)
	}
	return st, nil
}

func remoteReport(cmd *cobra.Command, sessionID string, w io.Writer) error {
	traceability, _ := cmd.Flags().GetBool("traceability")
	health, _ := cmd.Flags().GetBool("health")

	rep, err := newClient().ComprehensiveReport(cmd.Context(), sessionID, client.ReportOptions{
		IncludeTraceability:  traceability,
		IncludeHealthMetrics: health,
	})
	if err != nil {
		return fmt.Errorf("generating report: %s", client.UserMessage(err))
	}

	fmt.Fprintf(w, "# Code Review Report\n\nGenerated %s for session `%s`.\n\n", rep.GeneratedAt, sessionID)
	for _, sec := range []struct{ title, body string }{
		{"Executive Summary", rep.Report.ExecutiveSummary},
		{"Detailed Findings", rep.Report.DetailedFindings},
		{"Recommendations", rep.Report.Recommendations},
	} {
		if strings.TrimSpace(sec.body) == "" {
			continue
		}
		fmt.Fprintf(w, "## %s\n\n%s\n\n", sec.title, strings.TrimSpace(sec.body))
	}
	return nil
}
