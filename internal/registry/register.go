package registry

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

// Candidate is a file offered for registration.
type Candidate struct {
	Name         string
	Size         int64
	MimeType     string
	LastModified time.Time

	// Open returns the raw bytes. It may be nil when content is not needed.
	Open func() (io.ReadCloser, error)
}

// Bytes returns the candidate's raw content.
func (c Candidate) Bytes() ([]byte, error) {
	if c.Open == nil {
		return nil, fmt.Errorf("%s: no content source", c.Name)
	}
	rc, err := c.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// FromBytes builds a candidate backed by an in-memory buffer.
func FromBytes(name string, data []byte, mimeType string) Candidate {
	return Candidate{
		Name:         name,
		Size:         int64(len(data)),
		MimeType:     mimeType,
		LastModified: time.Now(),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromName builds a candidate without a content source; set Open to make
// its content readable.
func FromName(name string, size int64) Candidate {
	return Candidate{
		Name:         name,
		Size:         size,
		MimeType:     mimeFor(name),
		LastModified: time.Now(),
	}
}

// FromPath builds a candidate for a file on disk.
func FromPath(path string) (Candidate, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{
		Name:         filepath.Base(path),
		Size:         fi.Size(),
		MimeType:     mimeFor(path),
		LastModified: fi.ModTime(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Admission pairs an admitted file with the candidate it came from.
type Admission struct {
	File   model.UploadedFile
	Kind   model.FileKind
	Source Candidate
}

// Registration is the outcome of registering one batch.
type Registration struct {
	// Files is the partition after registration. On rejection it equals the
	// existing partition.
	Files    []model.UploadedFile
	Admitted []Admission
	Errors   []string
}

// OK reports whether the batch was admitted.
func (r Registration) OK() bool {
	return len(r.Errors) == 0
}

// RegisterFiles admits incoming into existing. The batch is all-or-nothing:
// exceeding the kind's cap or any per-file violation rejects every file.
// Admitted files get fresh identities and are appended in upload order;
// files sharing a name are kept as distinct entries.
func RegisterFiles(existing []model.UploadedFile, incoming []Candidate, kind model.FileKind) Registration {
	var errs []string
	if len(existing)+len(incoming) > Limit(kind) {
		errs = append(errs, capMessage(kind))
	}
	for _, c := range incoming {
		errs = append(errs, ValidateFile(c, kind)...)
	}
	if len(errs) > 0 {
		return Registration{Files: existing, Errors: errs}
	}

	files := make([]model.UploadedFile, len(existing), len(existing)+len(incoming))
	copy(files, existing)
	admitted := make([]Admission, 0, len(incoming))
	for _, c := range incoming {
		f := model.UploadedFile{
			ID:           uuid.NewString(),
			Name:         c.Name,
			Size:         c.Size,
			MimeType:     c.MimeType,
			LastModified: c.LastModified,
		}
		files = append(files, f)
		admitted = append(admitted, Admission{File: f, Kind: kind, Source: c})
	}
	return Registration{Files: files, Admitted: admitted}
}

// Register runs RegisterFiles against the store's current registry and, on
// success, dispatches the updated registry in the same step. The untouched
// partition is carried over unchanged.
func Register(st *session.Store, incoming []Candidate, kind model.FileKind) Registration {
	var reg Registration
	st.Update(func(s session.State) session.Action {
		reg = RegisterFiles(s.UploadedFiles.Partition(kind), incoming, kind)
		if !reg.OK() {
			return nil
		}
		files := s.UploadedFiles
		if kind == model.KindSRS {
			files.SRSFiles = reg.Files
		} else {
			files.CodeFiles = reg.Files
		}
		return session.SetUploadedFiles{Files: files}
	})
	return reg
}

var mimeTypes = map[string]string{
	".js":   "text/javascript",
	".jsx":  "text/javascript",
	".ts":   "text/typescript",
	".tsx":  "text/typescript",
	".py":   "text/x-python",
	".java": "text/x-java",
	".go":   "text/x-go",
	".md":   "text/markdown",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func mimeFor(name string) string {
	if m, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return m
	}
	return "text/plain"
}
