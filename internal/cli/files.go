package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/registry"
	"github.com/sprite-ai/crdash/internal/session"
)

// BatchError reports a rejected upload batch.
type BatchError struct {
	Errors []string
}

func (e *BatchError) Error() string {
	return "upload rejected:\n  " + strings.Join(e.Errors, "\n  ")
}

// candidates turns command line paths into upload candidates. Directories
// are walked for files of a supported type; named files are always kept so
// validation can report them. Names are relative to the argument.
func candidates(paths []string, kind model.FileKind) ([]registry.Candidate, error) {
	var out []registry.Candidate
	add := func(path, name string) error {
		c, err := registry.FromPath(path)
		if err != nil {
			return err
		}
		c.Name = filepath.ToSlash(name)
		out = append(out, c)
		return nil
	}

	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			if err := add(p, filepath.Base(p)); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !registry.Supported(d.Name(), kind) {
				return nil
			}
			rel, err := filepath.Rel(p, path)
			if err != nil {
				return err
			}
			return add(path, rel)
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	return out, nil
}

// registerLocal registers paths into store as one batch and reads their
// contents.
func registerLocal(ctx context.Context, store *session.Store, paths []string, kind model.FileKind) (registry.Registration, error) {
	cands, err := candidates(paths, kind)
	if err != nil {
		return registry.Registration{}, err
	}
	if len(cands) == 0 {
		return registry.Registration{}, fmt.Errorf("no %s files found", kind)
	}

	reg := registry.Register(store, cands, kind)
	if !reg.OK() {
		return reg, &BatchError{Errors: reg.Errors}
	}

	loader := registry.NewLoader(store, logger, cfg.Upload.ReadConcurrency)
	if err := loader.Load(ctx, store.Token(), reg.Admitted); err != nil {
		return reg, err
	}
	return reg, nil
}
