package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sprite-ai/crdash/internal/analysis"
	"github.com/sprite-ai/crdash/internal/diff"
	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/registry"
	"github.com/sprite-ai/crdash/internal/report"
	"github.com/sprite-ai/crdash/internal/session"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- State and actions ---

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Snapshot())
}

type actionRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	a, err := session.DecodeAction(req.Type, req.Payload)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if a == nil {
		s.logger.Debug("ignoring unknown action", slog.String("type", req.Type))
		s.writeJSON(w, http.StatusOK, s.store.Snapshot())
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Dispatch(a))
}

// --- Files ---

// maxUploadMemory is the part of a multipart upload kept in memory; the
// rest spills to temporary files.
const maxUploadMemory = 32 << 20

type uploadResponse struct {
	Files  []model.UploadedFile `json:"files"`
	Errors []string             `json:"errors,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind := model.FileKind(r.PathValue("kind"))
	if kind != model.KindCode && kind != model.KindSRS {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown file kind %q (want code or srs)", kind))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.writeError(w, http.StatusBadRequest, `no files in form field "files"`)
		return
	}

	incoming := make([]registry.Candidate, 0, len(headers))
	for _, fh := range headers {
		incoming = append(incoming, candidate(fh))
	}

	reg := registry.Register(s.store, incoming, kind)
	if !reg.OK() {
		s.writeJSON(w, http.StatusBadRequest, uploadResponse{Files: []model.UploadedFile{}, Errors: reg.Errors})
		return
	}

	admitted := make([]model.UploadedFile, 0, len(reg.Admitted))
	for _, adm := range reg.Admitted {
		admitted = append(admitted, adm.File)
		s.uploads.Start(adm.File.ID)
	}

	// The multipart parts are gone once the handler returns, so contents
	// are read before responding.
	if err := s.loader.Load(r.Context(), s.store.Token(), reg.Admitted); err != nil {
		s.logger.Warn("upload cancelled before contents were read", slog.Any("error", err))
	}

	s.writeJSON(w, http.StatusCreated, uploadResponse{Files: admitted})
}

func candidate(fh *multipart.FileHeader) registry.Candidate {
	c := registry.FromName(fh.Filename, fh.Size)
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		c.MimeType = ct
	}
	c.Open = func() (io.ReadCloser, error) { return fh.Open() }
	return c
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, _, ok := s.store.Snapshot().FindFile(id); !ok {
		s.writeError(w, http.StatusNotFound, "no such file: "+id)
		return
	}
	s.uploads.Forget(id)
	s.writeJSON(w, http.StatusOK, s.store.Dispatch(session.RemoveFile{FileID: id}))
}

// --- Review ---

type toggleRequest struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

type fileRequest struct {
	File string `json:"file"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.File == "" {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Dispatch(session.ToggleLine{File: req.File, Line: req.Line}))
}

func (s *Server) handleAcceptFile(w http.ResponseWriter, r *http.Request) {
	s.handleFileDecision(w, r, func(f string) session.Action { return session.AcceptFile{File: f} })
}

func (s *Server) handleRejectFile(w http.ResponseWriter, r *http.Request) {
	s.handleFileDecision(w, r, func(f string) session.Action { return session.RejectFile{File: f} })
}

func (s *Server) handleFileDecision(w http.ResponseWriter, r *http.Request, action func(string) session.Action) {
	var req fileRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.File == "" {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Dispatch(action(req.File)))
}

type findingJSON struct {
	Pass       string `json:"pass"`
	File       string `json:"file"`
	Line       int    `json:"line,omitempty"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Severity   string `json:"severity"`
}

type findingsResponse struct {
	Summary  string        `json:"summary"`
	Total    int           `json:"total"`
	Findings []findingJSON `json:"findings"`
}

// handleFindings checks the suggested fixes against the uploaded code.
func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	st := s.store.Snapshot()
	results := analysis.Review(st.ModifiedCode, st.UploadedFiles.CodeFiles)

	resp := findingsResponse{
		Summary:  results.Summary(),
		Total:    len(results.Findings),
		Findings: []findingJSON{},
	}
	for _, f := range results.Findings {
		resp.Findings = append(resp.Findings, findingJSON{
			Pass:       f.Pass,
			File:       f.File,
			Line:       f.Line,
			Type:       f.Type,
			Message:    f.Message,
			Suggestion: f.Suggestion,
			Severity:   f.Severity.String(),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// --- Diff import ---

type diffRequest struct {
	Diff string `json:"diff"`
}

type diffStatsJSON struct {
	Files    int `json:"files"`
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
}

type diffResponse struct {
	Files []string      `json:"files"`
	Stats diffStatsJSON `json:"stats"`
}

// handleDiff imports a unified diff as suggested changes. Original text is
// taken from uploaded code files with a matching name.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Diff) == "" {
		s.writeError(w, http.StatusBadRequest, "diff is required")
		return
	}

	records, err := diff.ParsePatch(req.Diff, uploadedSource(s.store.Snapshot()))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "parsing diff: "+err.Error())
		return
	}

	st := s.store.Dispatch(session.SetModifiedCode{Records: records})

	nFiles, added, modified, deleted := diff.Stats(records)
	resp := diffResponse{
		Files: []string{},
		Stats: diffStatsJSON{Files: nFiles, Added: added, Modified: modified, Deleted: deleted},
	}
	for _, name := range st.FileNames() {
		if _, ok := records[name]; ok {
			resp.Files = append(resp.Files, name)
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func uploadedSource(st session.State) diff.SourceFunc {
	return func(name string) (string, bool) {
		for _, f := range st.UploadedFiles.CodeFiles {
			if f.Name == name && f.HasContent() {
				return *f.Content, true
			}
		}
		return "", false
	}
}

// --- Local analysis ---

type analyzeRequest struct {
	Skip []string `json:"skip,omitempty"`
}

// handleAnalyze runs the offline analyzer over the uploaded code files.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
	}

	st := s.store.Snapshot()
	if len(st.UploadedFiles.CodeFiles) == 0 {
		s.writeError(w, http.StatusBadRequest, "no code files uploaded")
		return
	}

	tok := s.store.Token()
	s.store.Dispatch(session.SetAnalyzing{Analyzing: true})
	res := analysis.Analyze(st.UploadedFiles.CodeFiles, req.Skip)
	if !s.store.DispatchIf(tok, session.SetAnalysisResults{Result: res}) {
		s.store.Dispatch(session.SetAnalyzing{Analyzing: false})
		s.writeError(w, http.StatusConflict, "session was reset during analysis")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// --- Progress ---

type progressResponse struct {
	Review  model.ReviewProgress `json:"review"`
	Percent int                  `json:"percent"`
	Uploads map[string]int       `json:"uploads"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	st := s.store.Snapshot()
	resp := progressResponse{
		Review:  st.ReviewProgress,
		Percent: st.ReviewProgress.Percent(),
		Uploads: map[string]int{},
	}
	for _, files := range [][]model.UploadedFile{st.UploadedFiles.CodeFiles, st.UploadedFiles.SRSFiles} {
		for _, f := range files {
			if pct, ok := s.uploads.Get(f.ID); ok {
				resp.Uploads[f.ID] = pct
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// --- Report ---

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep := report.Build(s.store.Snapshot(), s.now())
	w.Header().Set("Content-Type", format.ContentType())
	if format == report.FormatXLSX {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="code-review-report.%s"`, format.Ext()))
	}
	if err := report.Render(w, rep, format); err != nil {
		s.logger.Warn("rendering report", slog.String("format", string(format)), slog.Any("error", err))
	}
}
