// Package dataset persists pipeline output to local files: the current
// view as CSV and the audit trail and rejection log as append-only
// NDJSON.
package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// File names within the output directory.
const (
	CurrentFile    = "current.csv"
	AuditFile      = "audit.ndjson"
	RejectionsFile = "rejections.ndjson"
)

// CurrentHeader is the current-view CSV column order.
var CurrentHeader = []string{
	"identity_key", "type", "date", "zone", "danger", "danger_text",
	"title", "observer", "source_url", "fetched_at", "content_hash",
	"version", "body",
}

// FileWriter writes the three output files under one directory. The
// audit trail and rejection log are opened append-only so successive
// runs extend rather than replace them; the current view is rewritten
// whole, since it is a snapshot, not a log.
type FileWriter struct {
	dir    string
	mu     sync.Mutex
	audit  *os.File
	reject *os.File
}

func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	audit, err := os.OpenFile(filepath.Join(dir, AuditFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	reject, err := os.OpenFile(filepath.Join(dir, RejectionsFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		audit.Close()
		return nil, fmt.Errorf("open rejection log: %w", err)
	}
	return &FileWriter{dir: dir, audit: audit, reject: reject}, nil
}

// WriteCurrent replaces the current-view CSV with the given snapshot.
func (w *FileWriter) WriteCurrent(_ context.Context, observations []domain.Observation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.Create(filepath.Join(w.dir, CurrentFile))
	if err != nil {
		return fmt.Errorf("create current view: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(CurrentHeader); err != nil {
		return err
	}
	for _, obs := range observations {
		row := []string{
			obs.ID,
			string(obs.Type),
			obs.Date.Format(time.RFC3339),
			string(obs.Zone),
			strconv.Itoa(obs.Danger),
			obs.DangerText,
			obs.Title,
			obs.Observer,
			obs.SourceURL,
			obs.FetchedAt.Format(time.RFC3339),
			obs.ContentHash,
			strconv.Itoa(obs.Version),
			obs.Body,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendVersions appends audit-trail rows, one JSON object per line.
func (w *FileWriter) AppendVersions(_ context.Context, versions []domain.Observation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	enc := json.NewEncoder(w.audit)
	for _, v := range versions {
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("append audit row: %w", err)
		}
	}
	return nil
}

// AppendRejections appends rejection-log rows.
func (w *FileWriter) AppendRejections(_ context.Context, rejections []domain.Rejection) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	enc := json.NewEncoder(w.reject)
	for _, r := range rejections {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("append rejection row: %w", err)
		}
	}
	return nil
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	errA := w.audit.Close()
	errR := w.reject.Close()
	if errA != nil {
		return errA
	}
	return errR
}
