package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

// ReadContent decodes r as text. A UTF-8 or UTF-16 byte order mark selects
// the encoding; BOM-less input that is not valid UTF-8 is read as
// Windows-1252.
func ReadContent(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}
	if hasBOM(raw) {
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		text, _, err := transform.Bytes(dec, raw)
		if err != nil {
			return "", fmt.Errorf("decoding content: %w", err)
		}
		return string(text), nil
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	text, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding content as windows-1252: %w", err)
	}
	return string(text), nil
}

func hasBOM(b []byte) bool {
	switch {
	case len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF:
		return true
	case len(b) >= 2 && (b[0] == 0xFE && b[1] == 0xFF || b[0] == 0xFF && b[1] == 0xFE):
		return true
	}
	return false
}

// Loader reads file contents in the background and stores them in the
// session. Failures are logged and leave the file without content.
type Loader struct {
	store  *session.Store
	logger *slog.Logger
	limit  int
}

// NewLoader returns a loader that reads at most concurrency files at once.
func NewLoader(st *session.Store, logger *slog.Logger, concurrency int) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Loader{
		store:  st,
		logger: logger.With(slog.String("component", "registry")),
		limit:  concurrency,
	}
}

// Load reads every code admission that has a source and dispatches its
// content guarded by tok. Requirement documents keep no content. Results for a session that has since been cleared are
// dropped. Load returns only when ctx is cancelled before all reads finish.
func (l *Loader) Load(ctx context.Context, tok session.Token, adms []Admission) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.limit)
	for _, adm := range adms {
		if adm.Kind != model.KindCode || adm.Source.Open == nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := l.read(adm.Source)
			if err != nil {
				l.logger.Warn("file content unavailable",
					slog.String("file", adm.File.Name),
					slog.String("id", adm.File.ID),
					slog.Any("error", err),
				)
				return nil
			}
			l.store.DispatchIf(tok, session.SetFileContent{FileID: adm.File.ID, Content: content})
			return nil
		})
	}
	return g.Wait()
}

func (l *Loader) read(c Candidate) (string, error) {
	rc, err := c.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return ReadContent(rc)
}
