package analysis

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/sprite-ai/crdash/internal/model"
)

// Anti-pattern regexes.
var (
	// Broad exception handling
	broadExceptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)except\s*:`),                                // Python: bare except
		regexp.MustCompile(`(?i)except\s+Exception\s*:`),                    // Python: catch-all
		regexp.MustCompile(`(?i)catch\s*\(\s*(Exception|Throwable|e)\s*\)`), // Java/C#
		regexp.MustCompile(`(?i)catch\s*\{`),                                // Swift/Kotlin bare catch
		regexp.MustCompile(`(?i)rescue\s*$`),                                // Ruby: bare rescue
		regexp.MustCompile(`(?i)rescue\s+StandardError`),                    // Ruby: catch-all
		regexp.MustCompile(`\.catch\(\s*(?:_|err|\(\s*\))\s*=>\s*\{\s*\}`),  // JS: swallowed promise error
		regexp.MustCompile(`catch\s*\(\s*\w*\s*\)\s*\{\s*\}`),               // JS/Java: empty catch block
	}

	// Lines that look like disabled code rather than prose
	commentedCodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?://|#)\s*(?:func |def |class |if |for |while |return |import |from |const |let |var |pub fn )`),
		regexp.MustCompile(`^\s*(?://|#)\s*\w+(\.\w+)*\s*\(.*\)\s*;?\s*$`),
		regexp.MustCompile(`^\s*/\*.*\b(?:func|def|class|return)\b.*\*/`),
	}

	todoPattern = regexp.MustCompile(`\b(TODO|FIXME|HACK|XXX)\b`)
)

// AntiPatternPass detects error swallowing, commented-out code, leftover
// markers and duplicated blocks.
func AntiPatternPass(srcs []Source) []Finding {
	var findings []Finding
	for _, src := range srcs {
		findings = append(findings, checkBroadExceptions(src)...)
		findings = append(findings, checkCommentedCode(src)...)
		findings = append(findings, checkTodos(src)...)
	}
	findings = append(findings, checkDuplication(srcs)...)
	return findings
}

func checkBroadExceptions(src Source) []Finding {
	var findings []Finding
	for i, text := range src.Lines {
		for _, pat := range broadExceptPatterns {
			if pat.MatchString(text) {
				findings = append(findings, Finding{
					Pass:       "anti_patterns",
					File:       src.Path,
					Line:       i + 1,
					Type:       "error-handling",
					Message:    fmt.Sprintf("Broad exception handling: %s", strings.TrimSpace(text)),
					Suggestion: "Catch the specific errors you expect and handle or re-raise the rest.",
					Severity:   model.SeverityMedium,
				})
				break
			}
		}
	}
	return findings
}

func checkCommentedCode(src Source) []Finding {
	var findings []Finding
	for i, text := range src.Lines {
		if todoPattern.MatchString(text) {
			continue
		}
		for _, pat := range commentedCodePatterns {
			if pat.MatchString(text) {
				findings = append(findings, Finding{
					Pass:       "anti_patterns",
					File:       src.Path,
					Line:       i + 1,
					Type:       "maintainability",
					Message:    fmt.Sprintf("Commented-out code: %s", strings.TrimSpace(text)),
					Suggestion: "Delete it; version control keeps the history.",
					Severity:   model.SeverityLow,
				})
				break
			}
		}
	}
	return findings
}

func checkTodos(src Source) []Finding {
	var findings []Finding
	for i, text := range src.Lines {
		if m := todoPattern.FindString(text); m != "" {
			findings = append(findings, Finding{
				Pass:     "anti_patterns",
				File:     src.Path,
				Line:     i + 1,
				Type:     "maintainability",
				Message:  fmt.Sprintf("Unresolved %s marker: %s", m, strings.TrimSpace(text)),
				Severity: model.SeverityLow,
			})
		}
	}
	return findings
}

// checkDuplication slides a window of N non-trivial lines over every source
// and reports repeated blocks.
func checkDuplication(srcs []Source) []Finding {
	const windowSize = 4

	type blockLoc struct {
		file string
		line int
	}
	type codeLine struct {
		text string
		line int
	}

	blocks := make(map[string][]blockLoc) // hash -> locations
	var order []string

	for _, src := range srcs {
		var code []codeLine
		for i, text := range src.Lines {
			t := strings.TrimSpace(text)
			switch t {
			case "", "{", "}", "(", ")", "};", "]", "end", "else:", "} else {":
				continue
			}
			code = append(code, codeLine{text: t, line: i + 1})
		}

		for i := 0; i+windowSize <= len(code); i++ {
			window := make([]string, windowSize)
			for j := range window {
				window[j] = code[i+j].text
			}
			h := hashBlock(window)
			if _, ok := blocks[h]; !ok {
				order = append(order, h)
			}
			blocks[h] = append(blocks[h], blockLoc{file: src.Path, line: code[i].line})
		}
	}

	var findings []Finding
	for _, h := range order {
		locs := blocks[h]
		if len(locs) < 2 {
			continue
		}
		// Report on the second (and subsequent) occurrences
		for _, loc := range locs[1:] {
			findings = append(findings, Finding{
				Pass:       "anti_patterns",
				File:       loc.file,
				Line:       loc.line,
				Type:       "duplication",
				Message:    fmt.Sprintf("Duplicate code block (also at %s:%d)", locs[0].file, locs[0].line),
				Suggestion: "Extract the shared logic into a function.",
				Severity:   model.SeverityMedium,
			})
		}
	}
	return deduplicateFindings(findings)
}

func hashBlock(lines []string) string {
	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
