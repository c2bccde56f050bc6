package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore keeps the chunk cache and run reports in one SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	locks *DocumentLocks
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, locks: NewDocumentLocks()}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.applyMigration(ctx, entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) applyMigration(ctx context.Context, name string) error {
	version := migrationVersion(name)
	if version <= 0 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
		return fmt.Errorf("check migration %s: %w", name, err)
	}
	if exists > 0 {
		return nil
	}
	// embed.FS paths always use forward slashes
	content, err := migrationFiles.ReadFile(path.Join("migrations", name))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return tx.Commit()
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (string, bool, error) {
	var hash, translation string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT source_hash, translation FROM chunk_cache
		 WHERE document_id = ? AND chunk_index = ? AND target_lang = ?`,
		key.DocumentID,
		key.ChunkIndex,
		key.TargetLanguage,
	).Scan(&hash, &translation)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read chunk %s#%d: %w", key.DocumentID, key.ChunkIndex, err)
	}
	if hash != key.SourceHash {
		return "", false, nil
	}
	return translation, true, nil
}

// Put records a translation. A row for the same chunk with a different
// source hash is overwritten.
func (s *SQLiteStore) Put(ctx context.Context, key Key, translation string) error {
	unlock := s.locks.Lock(key.DocumentID)
	defer unlock()

	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO chunk_cache (document_id, chunk_index, target_lang, source_hash, translation, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id, chunk_index, target_lang) DO UPDATE SET
			source_hash=excluded.source_hash,
			translation=excluded.translation,
			updated_at=excluded.updated_at`,
		key.DocumentID,
		key.ChunkIndex,
		key.TargetLanguage,
		key.SourceHash,
		translation,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("write chunk %s#%d: %w", key.DocumentID, key.ChunkIndex, err)
	}
	return nil
}

func (s *SQLiteStore) ListDocument(ctx context.Context, documentID, targetLanguage string) ([]Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT document_id, chunk_index, target_lang, source_hash, translation, updated_at
		 FROM chunk_cache
		 WHERE document_id = ? AND target_lang = ?
		 ORDER BY chunk_index ASC`,
		documentID,
		targetLanguage,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.DocumentID, &e.ChunkIndex, &e.TargetLanguage, &e.SourceHash, &e.Translation, &e.UpdatedAt); err != nil {
			return nil, err
		}
		ret = append(ret, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run RunRecord) error {
	if strings.TrimSpace(run.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO run_reports (run_id, started_at, finished_at, succeeded, failed, skipped, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			finished_at=excluded.finished_at,
			succeeded=excluded.succeeded,
			failed=excluded.failed,
			skipped=excluded.skipped,
			report_json=excluded.report_json`,
		run.RunID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Succeeded,
		run.Failed,
		run.Skipped,
		string(run.Report),
	)
	return err
}

// LoadRuns returns the most recent runs first. limit <= 0 returns all.
func (s *SQLiteStore) LoadRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, started_at, finished_at, succeeded, failed, skipped, report_json
		 FROM run_reports
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]RunRecord, 0)
	for rows.Next() {
		var r RunRecord
		var report string
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Succeeded, &r.Failed, &r.Skipped, &report); err != nil {
			return nil, err
		}
		r.Report = []byte(report)
		ret = append(ret, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
