package ledger

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

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by another version.
var ErrSchemaMismatch = errors.New("ledger schema version mismatch")

// Entry is one recorded transition attempt.
type Entry struct {
	ID             int64
	RecordedAt     time.Time
	ProjectDir     string
	ProjectName    string
	RequestID      string
	Command        string
	RequestedPhase string
	FromPhase      string
	ToPhase        string
	SceneIndex     int
	RunCount       int
	ErrorKind      string
	Message        string
}

// Failed reports whether the attempt recorded an error.
func (e Entry) Failed() bool {
	return e.ErrorKind != ""
}

// Store persists entries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
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

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
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
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset the ledger)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
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

// Record appends an entry. A zero RecordedAt is stamped with the current
// time.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions (
            recorded_at, project_dir, project_name, request_id, command,
            requested_phase, from_phase, to_phase, scene_index, run_count,
            error_kind, message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RecordedAt.UTC().Format(time.RFC3339Nano),
		entry.ProjectDir,
		nullableString(entry.ProjectName),
		nullableString(entry.RequestID),
		entry.Command,
		nullableString(entry.RequestedPhase),
		entry.FromPhase,
		entry.ToPhase,
		entry.SceneIndex,
		entry.RunCount,
		nullableString(entry.ErrorKind),
		nullableString(entry.Message),
	)
	if err != nil {
		return 0, fmt.Errorf("insert transition: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

const entryColumns = "id, recorded_at, project_dir, project_name, request_id, command, requested_phase, from_phase, to_phase, scene_index, run_count, error_kind, message"

// List returns up to limit entries for projectDir, newest first. An empty
// projectDir lists every project; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, projectDir string, limit int) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM transitions"
	var args []any
	if projectDir != "" {
		query += " WHERE project_dir = ?"
		args = append(args, projectDir)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return entries, nil
}

// Stats summarizes a project's attempts.
type Stats struct {
	Attempts int
	Failures int
}

// Stats counts attempts and failures for projectDir.
func (s *Store) Stats(ctx context.Context, projectDir string) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(CASE WHEN error_kind IS NOT NULL THEN 1 ELSE 0 END), 0)
         FROM transitions WHERE project_dir = ?`,
		projectDir,
	).Scan(&stats.Attempts, &stats.Failures)
	if err != nil {
		return Stats{}, fmt.Errorf("count transitions: %w", err)
	}
	return stats, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry       Entry
		recordedRaw string
		projectName sql.NullString
		requestID   sql.NullString
		requested   sql.NullString
		errorKind   sql.NullString
		message     sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&recordedRaw,
		&entry.ProjectDir,
		&projectName,
		&requestID,
		&entry.Command,
		&requested,
		&entry.FromPhase,
		&entry.ToPhase,
		&entry.SceneIndex,
		&entry.RunCount,
		&errorKind,
		&message,
	); err != nil {
		return Entry{}, fmt.Errorf("scan transition: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, recordedRaw); err == nil {
		entry.RecordedAt = parsed
	}
	entry.ProjectName = projectName.String
	entry.RequestID = requestID.String
	entry.RequestedPhase = requested.String
	entry.ErrorKind = errorKind.String
	entry.Message = message.String
	return entry, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
