// Package registry admits uploaded files into the session: it validates
// candidates, enforces the per-kind caps, assigns identities, reads text
// content in the background and drives the upload progress animation.
package registry

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/sprite-ai/crdash/internal/model"
)

// MaxFileSize is the largest file accepted, in bytes.
const MaxFileSize = 50 * 1024 * 1024

var limits = map[model.FileKind]int{
	model.KindCode: 100,
	model.KindSRS:  10,
}

var extensions = map[model.FileKind]map[string]bool{
	model.KindCode: set(".js", ".jsx", ".ts", ".tsx", ".py", ".java", ".cpp", ".c",
		".php", ".rb", ".go", ".rs", ".swift", ".kt"),
	model.KindSRS: set(".pdf", ".doc", ".docx", ".md", ".txt"),
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// Limit returns the maximum number of files of the given kind.
func Limit(kind model.FileKind) int {
	return limits[kind]
}

// Supported reports whether name has an allowed extension for kind.
func Supported(name string, kind model.FileKind) bool {
	return extensions[kind][strings.ToLower(filepath.Ext(name))]
}

// ValidateFile checks a single candidate and returns human-readable
// violations. An empty result means the file is acceptable.
func ValidateFile(c Candidate, kind model.FileKind) []string {
	var errs []string
	if c.Size > MaxFileSize {
		errs = append(errs, fmt.Sprintf("%s: file is %s, larger than the %s limit",
			c.Name, humanize.IBytes(uint64(c.Size)), humanize.IBytes(MaxFileSize)))
	}
	if !Supported(c.Name, kind) {
		ext := filepath.Ext(c.Name)
		if ext == "" {
			ext = "(none)"
		}
		errs = append(errs, fmt.Sprintf("%s: Unsupported file format %s for %s files", c.Name, ext, kindLabel(kind)))
	}
	return errs
}

func capMessage(kind model.FileKind) string {
	return fmt.Sprintf("Maximum %d %s files allowed", Limit(kind), kindLabel(kind))
}

func kindLabel(kind model.FileKind) string {
	if kind == model.KindSRS {
		return "SRS"
	}
	return "code"
}
