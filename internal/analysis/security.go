package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sprite-ai/crdash/internal/model"
)

// Security-sensitive patterns grouped by category.
var securityPatterns = []struct {
	category   string
	patterns   []*regexp.Regexp
	severity   model.Severity
	suggestion string
}{
	{
		category: "hardcoded secret",
		patterns: compilePatterns(
			`(?i)(api.?key|secret|passw(or)?d|token)\s*[:=]\s*["'][^"']{4,}["']`,
			`(?i)-----BEGIN (RSA |EC )?PRIVATE KEY-----`,
		),
		severity:   model.SeverityCritical,
		suggestion: "Load the value from configuration or a secret store.",
	},
	{
		category: "dynamic evaluation",
		patterns: compilePatterns(
			`(^|[^\w.])eval\s*\(`,
			`new\s+Function\s*\(`,
			`\bexec\s*\(\s*[^)]*input`,
		),
		severity:   model.SeverityCritical,
		suggestion: "Avoid evaluating strings as code.",
	},
	{
		category: "SQL built from strings",
		patterns: compilePatterns(
			`(?i)(execute|query|raw)\s*\(\s*f["']`,
			`(?i)["'](SELECT|INSERT|UPDATE|DELETE)\b[^"']*["']\s*(\+|%)`,
			`(?i)(execute|query)\s*\([^)]*\+\s*\w+`,
		),
		severity:   model.SeverityHigh,
		suggestion: "Use parameterized queries.",
	},
	{
		category: "command execution",
		patterns: compilePatterns(
			`(?i)(exec\.Command|os\.system|subprocess\.(call|run|Popen)|child_process|shell_exec|Runtime\.getRuntime\(\)\.exec)`,
			`shell\s*=\s*True`,
		),
		severity:   model.SeverityHigh,
		suggestion: "Validate arguments and avoid invoking a shell.",
	},
	{
		category: "disabled TLS verification",
		patterns: compilePatterns(
			`InsecureSkipVerify\s*:\s*true`,
			`verify\s*=\s*False`,
			`rejectUnauthorized\s*:\s*false`,
		),
		severity:   model.SeverityHigh,
		suggestion: "Keep certificate verification enabled.",
	},
	{
		category: "weak hash",
		patterns: compilePatterns(
			`(?i)\b(md5|sha1)\s*[.(]`,
			`(?i)hashlib\.(md5|sha1)\b`,
		),
		severity:   model.SeverityMedium,
		suggestion: "Use SHA-256 or a password hashing function.",
	},
	{
		category: "file system",
		patterns: compilePatterns(
			`(os\.Remove|os\.RemoveAll|os\.Chmod|shutil\.rmtree|fs\.unlink|unlink\()`,
			`(?i)(path\.join|filepath\.join)\(.*\.\.`,
		),
		severity:   model.SeverityMedium,
		suggestion: "Check that paths are confined to the expected directory.",
	},
	{
		category: "environment access",
		patterns: compilePatterns(
			`(os\.Getenv|os\.environ|process\.env|ENV\[|getenv\()`,
		),
		severity:   model.SeverityLow,
		suggestion: "Document the variable and handle it being unset.",
	},
}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// SecurityPass flags security-sensitive code.
func SecurityPass(srcs []Source) []Finding {
	var findings []Finding

	for _, src := range srcs {
		for i, text := range src.Lines {
			if isComment(text) {
				continue
			}
			for _, sp := range securityPatterns {
				for _, re := range sp.patterns {
					if !re.MatchString(text) {
						continue
					}
					findings = append(findings, Finding{
						Pass:       "security",
						File:       src.Path,
						Line:       i + 1,
						Type:       "security",
						Message:    fmt.Sprintf("Security-sensitive code (%s): %s", sp.category, strings.TrimSpace(text)),
						Suggestion: sp.suggestion,
						Severity:   sp.severity,
					})
					break // one finding per category per line
				}
			}
		}
	}

	return deduplicateFindings(findings)
}

func isComment(text string) bool {
	t := strings.TrimSpace(text)
	for _, p := range []string{"//", "#", "*", "/*"} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
