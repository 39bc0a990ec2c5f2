package blobstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scribe/internal/fileutil"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion must change whenever schema.sql does; older databases are
// rejected with ErrSchemaMismatch rather than migrated.
const schemaVersion = 1

var ErrSchemaMismatch = errors.New("blobstore: schema version mismatch")

const (
	sqliteBusyCode      = 5
	busyMaxRetries      = 4
	busyInitialInterval = 10 * time.Millisecond
	busyMaxInterval     = 200 * time.Millisecond
)

// SQLite keeps blob content and metadata in a single SQLite database.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to the blob database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("blobstore: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLite{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate it)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy reruns op while SQLite reports the database as locked.
// Other errors stop the loop immediately.
func retryOnBusy(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = busyInitialInterval
	policy.MaxInterval = busyMaxInterval
	policy.RandomizationFactor = 0

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isSQLiteBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, busyMaxRetries), ctx))
}

// execAffecting runs a write and reports ErrNotFound when no row matched.
func (s *SQLite) execAffecting(ctx context.Context, ref, query string, args ...any) error {
	var res sql.Result
	if err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(ref)
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *SQLite) List(ctx context.Context, folder string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM blobs WHERE folder = ? ORDER BY name, id", strings.Trim(folder, "/"))
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan blob id: %w", err)
		}
		refs = append(refs, id)
	}
	return refs, rows.Err()
}

func (s *SQLite) GetMetadata(ctx context.Context, ref string) (string, bool, error) {
	var metadata sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT metadata FROM blobs WHERE id = ?", ref).Scan(&metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, notFound(ref)
	}
	if err != nil {
		return "", false, fmt.Errorf("read metadata: %w", err)
	}
	return metadata.String, metadata.Valid, nil
}

func (s *SQLite) SetMetadata(ctx context.Context, ref, value string) error {
	return s.execAffecting(ctx, ref,
		"UPDATE blobs SET metadata = ?, updated_at = ? WHERE id = ?", value, timestamp(), ref)
}

func (s *SQLite) Upload(ctx context.Context, folder, localPath string) (string, error) {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	id := uuid.NewString()
	now := timestamp()
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO blobs (id, folder, name, content, size_bytes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, strings.Trim(folder, "/"), filepath.Base(localPath), content, len(content), now, now)
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("insert blob: %w", err)
	}
	return id, nil
}

func (s *SQLite) Download(ctx context.Context, ref, localDir string) (string, error) {
	var (
		name    string
		content []byte
	)
	err := s.db.QueryRowContext(ctx, "SELECT name, content FROM blobs WHERE id = ?", ref).Scan(&name, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(ref)
	}
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}
	target := filepath.Join(localDir, name)
	if err := fileutil.WriteFileAtomic(target, content, 0o644); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}
	return target, nil
}

func (s *SQLite) Delete(ctx context.Context, ref string) error {
	return s.execAffecting(ctx, ref, "DELETE FROM blobs WHERE id = ?", ref)
}

func (s *SQLite) Name(ctx context.Context, ref string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM blobs WHERE id = ?", ref).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(ref)
	}
	if err != nil {
		return "", fmt.Errorf("read name: %w", err)
	}
	return name, nil
}
