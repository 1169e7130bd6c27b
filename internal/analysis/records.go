package analysis

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/sprite-ai/crdash/internal/model"
)

// Function/method definition patterns for various languages.
var funcDefPatterns = []*regexp.Regexp{
	// Go: func Name(
	regexp.MustCompile(`^\s*func\s+(\w+)\s*\(`),
	// Go method: func (r *Type) Name(
	regexp.MustCompile(`^\s*func\s+\([^)]+\)\s+(\w+)\s*\(`),
	// Python: def name(
	regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)\s*\(`),
	// JS/TS: function name(  or  const name = (
	regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`),
	regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?\(`),
	// Rust: fn name(  or  pub fn name(
	regexp.MustCompile(`^\s*(?:pub\s+)?(?:async\s+)?fn\s+(\w+)\s*[(<]`),
	// Java/C#/Kotlin: visibility type name(
	regexp.MustCompile(`^\s*(?:public|private|protected|static|final|abstract|override)\s+[\w<>\[\], ]*?(\w+)\s*\(`),
}

// ReviewPass inspects suggested fixes. Each function definition a record
// deletes is reported, with high severity when another source still
// references it.
func ReviewPass(records map[string]model.ModifiedFileRecord, srcs []Source) []Finding {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	var findings []Finding
	for _, name := range names {
		for _, fn := range removedFunctions(records[name]) {
			refs := countReferences(srcs, name, fn.name)
			if refs > 0 {
				findings = append(findings, Finding{
					Pass:       "review",
					File:       name,
					Line:       fn.line,
					Type:       "breaking-change",
					Message:    fmt.Sprintf("Suggested change removes %q, still referenced %d times in other files", fn.name, refs),
					Suggestion: "Reject this change or update the callers.",
					Severity:   model.SeverityHigh,
				})
				continue
			}
			findings = append(findings, Finding{
				Pass:     "review",
				File:     name,
				Line:     fn.line,
				Type:     "maintainability",
				Message:  fmt.Sprintf("Suggested change removes function %s", fn.name),
				Severity: model.SeverityLow,
			})
		}
	}
	return findings
}

type funcInfo struct {
	name string
	line int
}

// removedFunctions returns the definitions a record deletes outright or
// replaces with a line that no longer defines the same name.
func removedFunctions(rec model.ModifiedFileRecord) []funcInfo {
	var funcs []funcInfo
	for _, c := range rec.Changes {
		var old string
		switch c.Type {
		case model.ChangeDeletion:
			old = c.OldContent
			if old == "" {
				old = c.Content
			}
		case model.ChangeModification:
			old = c.OldContent
		default:
			continue
		}
		name := definedName(old)
		if name == "" || name == definedName(c.NewContent) {
			continue
		}
		funcs = append(funcs, funcInfo{name: name, line: c.Line})
	}
	return funcs
}

func definedName(line string) string {
	for _, pat := range funcDefPatterns {
		if m := pat.FindStringSubmatch(line); len(m) > 1 && len(m[1]) > 2 { // skip very short names
			return m[1]
		}
	}
	return ""
}

func countReferences(srcs []Source, sourceFile, funcName string) int {
	pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(funcName) + `\b`)
	count := 0
	for _, src := range srcs {
		if src.Path == sourceFile {
			continue
		}
		for _, text := range src.Lines {
			if isComment(text) {
				continue
			}
			count += len(pattern.FindAllStringIndex(text, -1))
		}
	}
	return count
}

// Review runs ReviewPass and orders its findings the way Run does.
func Review(records map[string]model.ModifiedFileRecord, files []model.UploadedFile) *Results {
	res := &Results{Findings: ReviewPass(records, SourcesFrom(files))}
	sortFindings(res.Findings)
	return res
}

func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Message < b.Message
	})
}
