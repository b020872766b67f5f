// Package postgres is the optional relational sink: a versioned
// current-view table, an append-only audit table, and a rejection
// table. All inserts are idempotent so re-running a season backfill is
// safe.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS observations_current (
	identity_key TEXT PRIMARY KEY,
	record_type  TEXT NOT NULL,
	observed_at  TIMESTAMPTZ NOT NULL,
	zone         TEXT NOT NULL,
	danger       SMALLINT NOT NULL,
	danger_text  TEXT,
	title        TEXT,
	observer     TEXT,
	body         TEXT,
	source_url   TEXT NOT NULL,
	fetched_at   TIMESTAMPTZ NOT NULL,
	content_hash TEXT NOT NULL,
	version      INT NOT NULL
);
CREATE TABLE IF NOT EXISTS observations_audit (
	identity_key TEXT NOT NULL,
	version      INT NOT NULL,
	record_type  TEXT NOT NULL,
	observed_at  TIMESTAMPTZ NOT NULL,
	zone         TEXT NOT NULL,
	danger       SMALLINT NOT NULL,
	danger_text  TEXT,
	title        TEXT,
	observer     TEXT,
	body         TEXT,
	source_url   TEXT NOT NULL,
	fetched_at   TIMESTAMPTZ NOT NULL,
	content_hash TEXT NOT NULL,
	PRIMARY KEY (identity_key, version)
);
CREATE TABLE IF NOT EXISTS rejections (
	source_url TEXT NOT NULL,
	stage      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	snippet    TEXT,
	rejected_at TIMESTAMPTZ NOT NULL
);
`

const upsertCurrentSQL = `
INSERT INTO observations_current (
	identity_key, record_type, observed_at, zone, danger, danger_text,
	title, observer, body, source_url, fetched_at, content_hash, version
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (identity_key) DO UPDATE SET
	record_type = EXCLUDED.record_type,
	observed_at = EXCLUDED.observed_at,
	zone = EXCLUDED.zone,
	danger = EXCLUDED.danger,
	danger_text = EXCLUDED.danger_text,
	title = EXCLUDED.title,
	observer = EXCLUDED.observer,
	body = EXCLUDED.body,
	source_url = EXCLUDED.source_url,
	fetched_at = EXCLUDED.fetched_at,
	content_hash = EXCLUDED.content_hash,
	version = EXCLUDED.version
WHERE observations_current.version < EXCLUDED.version
`

const insertAuditSQL = `
INSERT INTO observations_audit (
	identity_key, version, record_type, observed_at, zone, danger,
	danger_text, title, observer, body, source_url, fetched_at, content_hash
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (identity_key, version) DO NOTHING
`

const insertRejectionSQL = `
INSERT INTO rejections (source_url, stage, reason, snippet, rejected_at)
VALUES ($1,$2,$3,$4,$5)
`

// Writer persists pipeline output to Postgres.
type Writer struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWriter connects, verifies the connection, and ensures the schema.
func NewWriter(ctx context.Context, dsn string, logger *slog.Logger) (*Writer, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Writer{pool: pool, logger: logger}, nil
}

// WriteCurrent upserts the snapshot; the version guard makes stale
// replays no-ops.
func (w *Writer) WriteCurrent(ctx context.Context, observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, obs := range observations {
		batch.Queue(upsertCurrentSQL, currentArgs(obs)...)
	}
	return w.sendBatch(ctx, batch)
}

// AppendVersions inserts audit rows; replayed versions are ignored.
func (w *Writer) AppendVersions(ctx context.Context, versions []domain.Observation) error {
	if len(versions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, obs := range versions {
		batch.Queue(insertAuditSQL, auditArgs(obs)...)
	}
	return w.sendBatch(ctx, batch)
}

// AppendRejections inserts rejection-log rows.
func (w *Writer) AppendRejections(ctx context.Context, rejections []domain.Rejection) error {
	if len(rejections) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rejections {
		batch.Queue(insertRejectionSQL, r.SourceURL, string(r.Stage), r.Reason, r.Snippet, r.At)
	}
	return w.sendBatch(ctx, batch)
}

func (w *Writer) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	results := w.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}

func (w *Writer) Close() error {
	w.pool.Close()
	return nil
}

func currentArgs(obs domain.Observation) []any {
	return []any{
		obs.ID, string(obs.Type), obs.Date, string(obs.Zone), obs.Danger,
		obs.DangerText, obs.Title, obs.Observer, obs.Body, obs.SourceURL,
		obs.FetchedAt, obs.ContentHash, obs.Version,
	}
}

func auditArgs(obs domain.Observation) []any {
	return []any{
		obs.ID, obs.Version, string(obs.Type), obs.Date, string(obs.Zone),
		obs.Danger, obs.DangerText, obs.Title, obs.Observer, obs.Body,
		obs.SourceURL, obs.FetchedAt, obs.ContentHash,
	}
}
