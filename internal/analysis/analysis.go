// Package analysis implements the offline analyzer: pattern passes over the
// contents of uploaded code files that produce the same result shape the
// backend returns.
package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sprite-ai/crdash/internal/model"
)

// LocalModel is reported as the model of results produced offline.
const LocalModel = "local"

// Source is one code file to analyze.
type Source struct {
	Path  string
	Lines []string
}

// SourcesFrom returns the files that have content, in order.
func SourcesFrom(files []model.UploadedFile) []Source {
	var out []Source
	for _, f := range files {
		if !f.HasContent() {
			continue
		}
		text := strings.ReplaceAll(*f.Content, "\r\n", "\n")
		out = append(out, Source{Path: f.Name, Lines: strings.Split(text, "\n")})
	}
	return out
}

// Finding is a single issue attached to a file and line.
type Finding struct {
	Pass       string // which pass produced this
	File       string
	Line       int // 1-based, 0 if file-level
	Type       string
	Message    string
	Suggestion string
	Severity   model.Severity
}

func (f Finding) String() string {
	loc := f.File
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Pass, loc, f.Message)
}

// Issue converts the finding to a model issue with an ID stable across runs.
func (f Finding) Issue() model.Issue {
	key := fmt.Sprintf("%s:%s:%d:%s", f.Pass, f.File, f.Line, f.Message)
	return model.Issue{
		ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String(),
		Line:        f.Line,
		Type:        f.Type,
		Severity:    f.Severity,
		Message:     f.Message,
		Description: f.String(),
		Suggestion:  f.Suggestion,
	}
}

// Results holds all findings from running analysis passes.
type Results struct {
	Findings []Finding
}

// ByFile returns findings grouped by file path.
func (r *Results) ByFile() map[string][]Finding {
	m := make(map[string][]Finding)
	for _, f := range r.Findings {
		m[f.File] = append(m[f.File], f)
	}
	return m
}

// AtLeast returns findings at or above the given severity.
func (r *Results) AtLeast(min model.Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity >= min {
			out = append(out, f)
		}
	}
	return out
}

// MaxSeverity returns the highest severity among all findings.
func (r *Results) MaxSeverity() model.Severity {
	max := model.SeverityLow
	for _, f := range r.Findings {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}

// Summary returns a one-line summary of findings.
func (r *Results) Summary() string {
	if len(r.Findings) == 0 {
		return "No issues found"
	}
	counts := make(map[model.Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	var parts []string
	for _, s := range []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
		if c := counts[s]; c > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c, s))
		}
	}
	return strings.Join(parts, ", ")
}

// Pass analyzes a set of sources and returns findings.
type Pass func(srcs []Source) []Finding

// PassNames maps pass names to passes (for --skip).
var PassNames = map[string]Pass{
	"security":      SecurityPass,
	"anti_patterns": AntiPatternPass,
}

// Run executes all passes not named in skip. Findings are ordered by file
// and line.
func Run(srcs []Source, skip []string) *Results {
	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[s] = true
	}

	results := &Results{}
	for name, pass := range PassNames {
		if skipSet[name] {
			continue
		}
		results.Findings = append(results.Findings, pass(srcs)...)
	}
	sortFindings(results.Findings)
	return results
}

// Analyze runs the passes over the given code files and builds an analysis
// result: a folder tree of the files with their issues, plus the summary.
func Analyze(files []model.UploadedFile, skip []string) *model.AnalysisResult {
	srcs := SourcesFrom(files)
	byFile := Run(srcs, skip).ByFile()

	res := &model.AnalysisResult{ModelUsed: LocalModel}
	for _, f := range files {
		issues := []model.Issue{}
		for _, fd := range byFile[f.Name] {
			issues = append(issues, fd.Issue())
		}
		path := strings.Split(filepath.ToSlash(f.Name), "/")
		res.FileStructure = model.InsertFile(res.FileStructure, path, model.FileNode{
			Language: Language(f.Name),
			Size:     f.Size,
			Issues:   issues,
		})
	}
	res.Summary = res.Summarize()
	return res
}

var languages = map[string]string{
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".java":  "java",
	".cpp":   "cpp",
	".c":     "c",
	".php":   "php",
	".rb":    "ruby",
	".go":    "go",
	".rs":    "rust",
	".swift": "swift",
	".kt":    "kotlin",
}

// Language guesses the programming language from the file name.
func Language(name string) string {
	if l, ok := languages[strings.ToLower(filepath.Ext(name))]; ok {
		return l
	}
	return "unknown"
}

// deduplicateFindings removes findings with the same file+line+message.
func deduplicateFindings(findings []Finding) []Finding {
	seen := make(map[string]bool)
	var result []Finding
	for _, f := range findings {
		key := fmt.Sprintf("%s:%d:%s", f.File, f.Line, f.Message)
		if !seen[key] {
			seen[key] = true
			result = append(result, f)
		}
	}
	return result
}
