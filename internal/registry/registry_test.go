package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func candidate(name string, size int64) Candidate {
	return Candidate{Name: name, Size: size}
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name    string
		file    Candidate
		kind    model.FileKind
		wantErr string
	}{
		{"python ok", candidate("a.py", 10), model.KindCode, ""},
		{"upper-case ext", candidate("Main.GO", 10), model.KindCode, ""},
		{"srs markdown", candidate("req.md", 10), model.KindSRS, ""},
		{"exe rejected", candidate("a.exe", 10), model.KindCode, "Unsupported file format .exe"},
		{"code as srs", candidate("a.py", 10), model.KindSRS, "Unsupported file format .py for SRS files"},
		{"no extension", candidate("Makefile", 10), model.KindCode, "Unsupported file format (none)"},
		{"too large", candidate("big.js", MaxFileSize+1), model.KindCode, "larger than the 50 MiB limit"},
		{"exactly at limit", candidate("big.js", MaxFileSize), model.KindCode, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateFile(tt.file, tt.kind)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestRegisterFilesCapRejectsWholeBatch(t *testing.T) {
	incoming := make([]Candidate, 101)
	for i := range incoming {
		incoming[i] = candidate(fmt.Sprintf("f%03d.py", i), 1)
	}

	reg := RegisterFiles(nil, incoming, model.KindCode)

	assert.False(t, reg.OK())
	assert.Empty(t, reg.Files)
	assert.Empty(t, reg.Admitted)
	assert.Contains(t, reg.Errors, "Maximum 100 code files allowed")
}

func TestRegisterFilesCapCountsExisting(t *testing.T) {
	existing := make([]model.UploadedFile, 9)
	incoming := []Candidate{candidate("a.md", 1), candidate("b.md", 1)}

	reg := RegisterFiles(existing, incoming, model.KindSRS)

	assert.Equal(t, []string{"Maximum 10 SRS files allowed"}, reg.Errors)
	assert.Len(t, reg.Files, 9)
}

func TestRegisterFilesOneBadFileRejectsBatch(t *testing.T) {
	incoming := []Candidate{candidate("a.py", 1), candidate("b.exe", 1), candidate("c.go", 1)}

	reg := RegisterFiles(nil, incoming, model.KindCode)

	require.Len(t, reg.Errors, 1)
	assert.Contains(t, reg.Errors[0], "b.exe")
	assert.Empty(t, reg.Files)
}

func TestRegisterFilesAssignsFreshIDs(t *testing.T) {
	existing := []model.UploadedFile{{ID: "existing", Name: "a.py"}}

	reg := RegisterFiles(existing, []Candidate{candidate("a.py", 3), candidate("a.py", 4)}, model.KindCode)

	require.True(t, reg.OK())
	require.Len(t, reg.Files, 3)
	assert.Equal(t, existing[0], reg.Files[0])
	ids := map[string]bool{}
	for _, f := range reg.Files {
		assert.Equal(t, "a.py", f.Name)
		assert.False(t, ids[f.ID], "duplicate id %s", f.ID)
		ids[f.ID] = true
	}
	assert.Equal(t, int64(3), reg.Files[1].Size)
	assert.Equal(t, int64(4), reg.Files[2].Size)
	assert.Equal(t, reg.Files[1], reg.Admitted[0].File)
}

func TestRegisterThroughStore(t *testing.T) {
	st := session.NewStore(quietLogger())
	require.True(t, Register(st, []Candidate{candidate("req.md", 1)}, model.KindSRS).OK())

	reg := Register(st, []Candidate{candidate("a.exe", 1)}, model.KindCode)
	require.False(t, reg.OK())
	assert.Contains(t, reg.Errors[0], "Unsupported file format")
	assert.Empty(t, st.Snapshot().UploadedFiles.CodeFiles)

	reg = Register(st, []Candidate{candidate("a.py", 1)}, model.KindCode)
	require.True(t, reg.OK())

	s := st.Snapshot()
	require.Len(t, s.UploadedFiles.CodeFiles, 1)
	assert.Equal(t, "a.py", s.UploadedFiles.CodeFiles[0].Name)
	assert.NotEmpty(t, s.UploadedFiles.CodeFiles[0].ID)
	assert.NotEqual(t, s.UploadedFiles.SRSFiles[0].ID, s.UploadedFiles.CodeFiles[0].ID)
	assert.Len(t, s.UploadedFiles.SRSFiles, 1, "other partition is carried over")
}

func TestFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	c, err := FromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "main.go", c.Name)
	assert.Equal(t, int64(13), c.Size)
	assert.Equal(t, "text/x-go", c.MimeType)
	rc, err := c.Open()
	require.NoError(t, err)
	defer rc.Close()
	got, err := ReadContent(rc)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", got)
}

func TestReadContent(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain utf-8", []byte("héllo"), "héllo"},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "x := 1"...), "x := 1"},
		{"utf-16le bom", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, "hi"},
		{"utf-16be bom", []byte{0xFE, 0xFF, 0, 'h', 0, 'i'}, "hi"},
		{"windows-1252", []byte{'c', 'a', 'f', 0xE9}, "café"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadContent(bytes.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoaderStoresContent(t *testing.T) {
	st := session.NewStore(quietLogger())
	reg := Register(st, []Candidate{
		FromBytes("a.py", []byte("print(1)"), "text/x-python"),
		FromBytes("b.go", []byte("package b"), "text/x-go"),
		{Name: "broken.js", Size: 1, Open: func() (io.ReadCloser, error) { return nil, errors.New("gone") }},
	}, model.KindCode)
	require.True(t, reg.OK())

	l := NewLoader(st, quietLogger(), 2)
	require.NoError(t, l.Load(context.Background(), st.Token(), reg.Admitted))

	files := st.Snapshot().UploadedFiles.CodeFiles
	require.Len(t, files, 3)
	require.True(t, files[0].HasContent())
	assert.Equal(t, "print(1)", *files[0].Content)
	assert.Equal(t, "package b", *files[1].Content)
	assert.False(t, files[2].HasContent(), "failed reads stay registered without content")
}

func TestLoaderSkipsRequirementDocuments(t *testing.T) {
	st := session.NewStore(quietLogger())
	reg := Register(st, []Candidate{FromBytes("req.md", []byte("# Requirements"), "text/markdown")}, model.KindSRS)
	require.True(t, reg.OK())
	assert.Equal(t, model.KindSRS, reg.Admitted[0].Kind)

	require.NoError(t, NewLoader(st, quietLogger(), 1).Load(context.Background(), st.Token(), reg.Admitted))

	files := st.Snapshot().UploadedFiles.SRSFiles
	require.Len(t, files, 1)
	assert.Nil(t, files[0].Content)
}

func TestCandidateBytesKeepsBinary(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G', 0x00, 0xFF, 0xFE, 0xE9}
	c := FromBytes("logo.png", data, "image/png")

	got, err := c.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = FromName("a.py", 1).Bytes()
	assert.Error(t, err)
}

func TestLoaderDropsStaleContent(t *testing.T) {
	st := session.NewStore(quietLogger())
	reg := Register(st, []Candidate{FromBytes("a.py", []byte("x"), "")}, model.KindCode)
	tok := st.Token()

	st.Dispatch(session.ClearAllData{})
	st.Dispatch(session.SetUploadedFiles{Files: model.UploadedFiles{CodeFiles: []model.UploadedFile{reg.Admitted[0].File}}})

	require.NoError(t, NewLoader(st, quietLogger(), 1).Load(context.Background(), tok, reg.Admitted))

	assert.False(t, st.Snapshot().UploadedFiles.CodeFiles[0].HasContent())
}

func TestLoaderCancelled(t *testing.T) {
	st := session.NewStore(quietLogger())
	reg := Register(st, []Candidate{FromBytes("a.py", []byte("x"), "")}, model.KindCode)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewLoader(st, quietLogger(), 1).Load(ctx, st.Token(), reg.Admitted)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgressRunsToCompletion(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	p := NewProgress(30, time.Millisecond, func(id string, pct int) {
		mu.Lock()
		seen = append(seen, pct)
		mu.Unlock()
	})

	p.Start("f1")
	p.Wait()

	pct, ok := p.Get("f1")
	assert.True(t, ok)
	assert.Equal(t, 100, pct)
	assert.False(t, p.Running("f1"))
	mu.Lock()
	assert.Equal(t, []int{30, 60, 90, 100}, seen)
	mu.Unlock()
}

func TestProgressForgetStopsTicker(t *testing.T) {
	p := NewProgress(1, time.Hour, nil)
	p.Start("f1")
	require.True(t, p.Running("f1"))

	p.Forget("f1")
	p.Wait()

	_, ok := p.Get("f1")
	assert.False(t, ok)
	assert.False(t, p.Running("f1"))
}

func TestProgressClose(t *testing.T) {
	p := NewProgress(1, time.Hour, nil)
	p.Start("a")
	p.Start("b")

	p.Close()

	assert.False(t, p.Running("a"))
	pct, ok := p.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 0, pct)
}
