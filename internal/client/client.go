// Package client talks to the code review backend over its REST API.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sprite-ai/crdash/internal/model"
)

// DefaultTimeout bounds every request. AI operations can be slow.
const DefaultTimeout = 120 * time.Second

// Client is a typed client for the backend API.
type Client struct {
	base       string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the backend at baseURL. The /api prefix is
// appended unless baseURL already ends with it.
func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "client"))
	return c
}

// BaseURL returns the API root the client sends requests to.
func (c *Client) BaseURL() string {
	return c.base
}

// CreateSession starts a new backend session.
func (c *Client) CreateSession(ctx context.Context) (*SessionInfo, error) {
	var out SessionInfo
	if err := c.do(ctx, http.MethodPost, "/session/create", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile sends one file to the session. data is base64 encoded on the
// wire.
func (c *Client) UploadFile(ctx context.Context, sessionID string, f model.UploadedFile, kind model.FileKind, data []byte) (*UploadAck, error) {
	body := UploadRequest{
		Name:     f.Name,
		Type:     kind,
		Size:     int64(len(data)),
		Content:  base64.StdEncoding.EncodeToString(data),
		MimeType: f.MimeType,
	}
	var out UploadAck
	q := url.Values{"session_id": {sessionID}}
	if err := c.do(ctx, http.MethodPost, "/files/upload", q, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessionFiles returns the files stored for a session.
func (c *Client) ListSessionFiles(ctx context.Context, sessionID string) (*SessionFiles, error) {
	var out SessionFiles
	if err := c.do(ctx, http.MethodGet, "/files/session/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateSRS asks the backend whether an uploaded SRS file looks like a
// requirements document.
func (c *Client) ValidateSRS(ctx context.Context, fileID string) (*SRSValidation, error) {
	var out SRSValidation
	q := url.Values{"file_id": {fileID}}
	if err := c.do(ctx, http.MethodPost, "/files/validate-srs", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadZip streams the session's files as a zip archive into w and
// returns the number of bytes written.
func (c *Client) DownloadZip(ctx context.Context, sessionID string, w io.Writer) (int64, error) {
	path := "/files/download-zip/" + url.PathEscape(sessionID)
	resp, err := c.send(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("downloading zip: %w", err)
	}
	return n, nil
}

// GenerateChecklist derives a checklist from the session's SRS files.
func (c *Client) GenerateChecklist(ctx context.Context, sessionID, aiModel string) (*ChecklistResponse, error) {
	var out ChecklistResponse
	q := url.Values{"session_id": {sessionID}, "model": {aiModel}}
	if err := c.do(ctx, http.MethodPost, "/analysis/generate-checklist", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalysisResults fetches the most recent analysis of a session.
func (c *Client) AnalysisResults(ctx context.Context, sessionID string) (*AnalysisResults, error) {
	var out AnalysisResults
	if err := c.do(ctx, http.MethodGet, "/analysis/results/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FixCode asks the backend to rewrite a file, fixing its issues.
func (c *Client) FixCode(ctx context.Context, req FixRequest) (*FixResponse, error) {
	var out FixResponse
	if err := c.do(ctx, http.MethodPost, "/code/fix", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ModifiedFiles lists the rewritten files of a session.
func (c *Client) ModifiedFiles(ctx context.Context, sessionID string) (*ModifiedFiles, error) {
	var out ModifiedFiles
	if err := c.do(ctx, http.MethodGet, "/code/modified/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateReview records a review decision on the backend.
func (c *Client) UpdateReview(ctx context.Context, req ReviewUpdate) (*ReviewAck, error) {
	var out ReviewAck
	if err := c.do(ctx, http.MethodPost, "/review/update", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ComprehensiveAnalysis runs the full AI analysis.
func (c *Client) ComprehensiveAnalysis(ctx context.Context, sessionID, aiModel string) (*AnalysisStatus, error) {
	var out AnalysisStatus
	q := url.Values{"session_id": {sessionID}, "model": {aiModel}}
	if err := c.do(ctx, http.MethodPost, "/ai/comprehensive-analysis", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TraceabilityMatrix maps requirements to code.
func (c *Client) TraceabilityMatrix(ctx context.Context, sessionID string) (*Traceability, error) {
	var out Traceability
	if err := c.do(ctx, http.MethodGet, "/ai/traceability-matrix/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthMetrics returns per-file code health.
func (c *Client) HealthMetrics(ctx context.Context, sessionID string) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/ai/health-metrics/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends a message to the session-aware assistant.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (*ChatReply, error) {
	var out ChatReply
	q := url.Values{"session_id": {sessionID}, "message": {message}}
	if err := c.do(ctx, http.MethodPost, "/ai/chat", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatHistory returns up to limit previous exchanges. A limit of zero lets
// the backend choose.
func (c *Client) ChatHistory(ctx context.Context, sessionID string, limit int) (*ChatHistory, error) {
	var out ChatHistory
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	if err := c.do(ctx, http.MethodGet, "/ai/chat-history/"+url.PathEscape(sessionID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ComprehensiveReport asks the backend to write the final report.
func (c *Client) ComprehensiveReport(ctx context.Context, sessionID string, opts ReportOptions) (*Report, error) {
	format := opts.Format
	if format == "" {
		format = "json"
	}
	q := url.Values{
		"session_id":             {sessionID},
		"include_traceability":   {strconv.FormatBool(opts.IncludeTraceability)},
		"include_health_metrics": {strconv.FormatBool(opts.IncludeHealthMetrics)},
		"format_type":            {format},
	}
	var out Report
	if err := c.do(ctx, http.MethodPost, "/ai/comprehensive-report", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dashboard returns the aggregated dashboard of a session.
func (c *Client) Dashboard(ctx context.Context, sessionID string) (*Dashboard, error) {
	var out Dashboard
	if err := c.do(ctx, http.MethodGet, "/ai/dashboard/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CodeSuggestions requests completions for a snippet.
func (c *Client) CodeSuggestions(ctx context.Context, sessionID string, req SuggestionRequest) (*Suggestions, error) {
	q := url.Values{
		"session_id":      {sessionID},
		"file_name":       {req.FileName},
		"code_snippet":    {req.CodeSnippet},
		"cursor_position": {strconv.Itoa(req.CursorPosition)},
	}
	var out Suggestions
	if err := c.do(ctx, http.MethodPost, "/ai/code-suggestions", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends a request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

// send performs the request and returns the response only for 2xx
// statuses. The caller closes the body.
func (c *Client) send(ctx context.Context, method, path string, q url.Values, body any) (*http.Response, error) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug("request done",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &Error{Method: method, Path: path, Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	return resp, nil
}

// readDetail extracts the error detail from a backend error body.
func readDetail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(b, &e); err == nil && len(e.Detail) > 0 {
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			return s
		}
		return string(e.Detail)
	}
	return strings.TrimSpace(string(b))
}
