package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/and161185/motectl/internal/convert"
	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/reconcile"
	"github.com/and161185/motectl/internal/repository"
)

// Format is the encoding of an exported or imported definition list.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml; "" means json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", errs.ErrValidation, s)
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ExportFileName is the default download name for an export taken at now.
func ExportFileName(now time.Time, f Format) string {
	ext := "json"
	if f == FormatYAML {
		ext = "yaml"
	}
	return fmt.Sprintf("motebase_collections_%s.%s", now.Format(time.DateOnly), ext)
}

// ImportError is a rejected import document. Its message is shown verbatim.
type ImportError struct {
	msg string
}

func (e *ImportError) Error() string { return e.msg }
func (e *ImportError) Unwrap() error { return errs.ErrInvalidImport }

func invalidImport(format string, args ...any) error {
	return &ImportError{msg: fmt.Sprintf(format, args...)}
}

// ImportSession is a parsed candidate set under review.
type ImportSession struct {
	Raw           []json.RawMessage
	Candidates    []model.Collection
	Live          []model.Collection
	Changes       []model.ImportChange
	DeleteMissing bool
	// Applied is set once the server accepted the batch and stays set until
	// the change set is recomputed against a fresh live set.
	Applied bool
}

// Recompute replaces the live set and reclassifies from scratch.
func (s *ImportSession) Recompute(live []model.Collection) {
	s.Live = live
	s.Changes = reconcile.Reconcile(live, s.Candidates)
	s.Applied = false
}

// HasConflicts reports whether apply is blocked.
func (s *ImportSession) HasConflicts() bool { return reconcile.HasConflicts(s.Changes) }

// Summary counts the changes apply would make.
func (s *ImportSession) Summary() reconcile.Summary {
	return reconcile.Summarize(s.Changes, s.DeleteMissing)
}

// TransferService exports and imports collection definitions.
type TransferService struct {
	repo repository.CollectionRepository
	busy *Busy
	log  *zap.Logger
}

// NewTransferService constructs a TransferService.
func NewTransferService(repo repository.CollectionRepository, busy *Busy, log *zap.Logger) *TransferService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TransferService{repo: repo, busy: busy, log: log}
}

// Export returns all definitions as indented JSON or YAML.
func (s *TransferService) Export(ctx context.Context, f Format) ([]byte, error) {
	raw, err := s.repo.ExportCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("export collections: %w", err)
	}
	if f == FormatYAML {
		return convert.JSONToYAML(raw)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("export collections: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ParseCandidates validates an import document without touching the store.
func ParseCandidates(data []byte, f Format) ([]json.RawMessage, []model.Collection, error) {
	if f == FormatYAML {
		j, err := convert.YAMLToJSON(data)
		if err != nil {
			return nil, nil, invalidImport("Invalid YAML: %v", err)
		}
		data = j
	}
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, invalidImport("Invalid JSON: %v", err)
	}
	if _, ok := probe.([]any); !ok {
		return nil, nil, invalidImport("Invalid format: expected an array of collections")
	}
	raws, cands, err := convert.DecodeCandidates(data)
	if err != nil {
		return nil, nil, invalidImport("Invalid format: expected an array of collections")
	}
	return raws, cands, nil
}

// Preview parses data and reconciles it against the live set.
func (s *TransferService) Preview(ctx context.Context, data []byte, f Format) (*ImportSession, error) {
	raws, cands, err := ParseCandidates(data, f)
	if err != nil {
		return nil, err
	}
	live, err := s.repo.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("load collections: %w", err)
	}
	sess := &ImportSession{Raw: raws, Candidates: cands}
	sess.Recompute(live)
	return sess, nil
}

// Apply submits the raw candidates in one batch and reloads the live set.
// It refuses without any request while a conflict remains, and for a session
// that was applied but could not be reloaded.
func (s *TransferService) Apply(ctx context.Context, sess *ImportSession) error {
	if sess.HasConflicts() {
		return errs.ErrImportConflict
	}
	if sess.Applied {
		return fmt.Errorf("%w: import already applied, preview the file again", errs.ErrValidation)
	}
	err := s.busy.Do(func() error {
		return s.repo.ImportCollections(ctx, sess.Raw, sess.DeleteMissing)
	})
	if err != nil {
		return fmt.Errorf("import collections: %w", err)
	}
	sum := sess.Summary()
	s.log.Info("collections imported",
		zap.Int("creates", sum.Creates),
		zap.Int("updates", sum.Updates),
		zap.Int("renames", sum.Renames),
		zap.Int("deletes", sum.Deletes),
	)
	sess.Applied = true
	sess.Changes = nil
	live, err := s.repo.ListCollections(ctx)
	if err != nil {
		s.log.Warn("reload after import failed", zap.Error(err))
		return fmt.Errorf("import applied, but reloading collections failed: %w", err)
	}
	sess.Recompute(live)
	return nil
}

// watchDelay coalesces editor save bursts into one preview.
const watchDelay = 500 * time.Millisecond

// Watch previews path now and again after every change, until ctx ends.
// fn runs on the calling goroutine.
func (s *TransferService) Watch(ctx context.Context, path string, f Format, fn func(*ImportSession, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer w.Close()
	// editors replace files on save, so watch the directory
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	preview := func() {
		data, err := os.ReadFile(abs)
		if err != nil {
			fn(nil, err)
			return
		}
		fn(s.Preview(ctx, data, f))
	}
	preview()

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if p, _ := filepath.Abs(ev.Name); p != abs {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			s.log.Debug("import file changed", zap.String("path", abs))
			preview()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watch error", zap.Error(err))
		}
	}
}
