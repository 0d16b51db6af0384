package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/siteclone/siteclone/internal/model"
)

// dbFileName is the SQLite database file name under the data directory.
const dbFileName = "siteclone.db"

// SessionDB provides SQLite-based storage for sessions and their assets.
//
// Design decision: one database file for all sessions rather than a file
// per session. Recovery queries span sessions ("which are resumable?"),
// and a single file keeps retention cleanup to one pass.
type SessionDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures SessionDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a SessionDB in the given directory.
func Open(dbDir string, opts Options) (*SessionDB, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports one writer; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SessionDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // Already failing
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *SessionDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (sdb *SessionDB) createTables() error {
	schema := `
	-- Session snapshots, updated as the session progresses
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		progress REAL NOT NULL DEFAULT 0,
		asset_count INTEGER NOT NULL DEFAULT 0,
		pages_visited INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		last_error TEXT,
		options_json TEXT NOT NULL,
		fingerprint_json TEXT NOT NULL,
		output_root TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	-- Per-asset records, keyed by session and source URL
	CREATE TABLE IF NOT EXISTS assets (
		session_id TEXT NOT NULL,
		source_url TEXT NOT NULL,
		type TEXT NOT NULL,
		subtype TEXT,
		content_type TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		discovered_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		failure_reason TEXT,
		local_path TEXT,
		content_hash TEXT,
		PRIMARY KEY (session_id, source_url)
	);

	CREATE INDEX IF NOT EXISTS idx_assets_session ON assets(session_id);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveSession inserts or updates a session snapshot.
func (sdb *SessionDB) SaveSession(ctx context.Context, s *model.Session) error {
	optionsJSON, err := json.Marshal(s.Options)
	if err != nil {
		return fmt.Errorf("serialize options: %w", err)
	}
	fingerprintJSON, err := json.Marshal(s.Fingerprint)
	if err != nil {
		return fmt.Errorf("serialize fingerprint: %w", err)
	}

	var completedAt any
	if s.CompletedAt != nil {
		completedAt = s.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	query := `
	INSERT INTO sessions (id, url, status, progress, asset_count, pages_visited,
		started_at, completed_at, last_error, options_json, fingerprint_json, output_root)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		progress = excluded.progress,
		asset_count = excluded.asset_count,
		pages_visited = excluded.pages_visited,
		completed_at = excluded.completed_at,
		last_error = excluded.last_error,
		fingerprint_json = excluded.fingerprint_json,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err = sdb.db.ExecContext(ctx, query,
		s.ID,
		s.URL,
		s.Status.String(),
		s.Progress,
		s.AssetCount,
		s.PagesVisited,
		s.StartedAt.UTC().Format(time.RFC3339Nano),
		completedAt,
		s.LastError,
		string(optionsJSON),
		string(fingerprintJSON),
		s.OutputRoot,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns (nil, nil) when absent.
func (sdb *SessionDB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	query := `
	SELECT id, url, status, progress, asset_count, pages_visited,
		started_at, completed_at, last_error, options_json, fingerprint_json, output_root
	FROM sessions
	WHERE id = ?
	`

	var s model.Session
	var status, startedAt, optionsJSON, fingerprintJSON string
	var completedAt, lastError sql.NullString

	err := sdb.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.URL,
		&status,
		&s.Progress,
		&s.AssetCount,
		&s.PagesVisited,
		&startedAt,
		&completedAt,
		&lastError,
		&optionsJSON,
		&fingerprintJSON,
		&s.OutputRoot,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s.Status = model.ParseSessionStatus(status)
	s.StartedAt = parseTimestamp(startedAt)
	if completedAt.Valid && completedAt.String != "" {
		t := parseTimestamp(completedAt.String)
		s.CompletedAt = &t
	}
	s.LastError = lastError.String

	if err := json.Unmarshal([]byte(optionsJSON), &s.Options); err != nil {
		return nil, fmt.Errorf("parse options: %w", err)
	}
	if err := json.Unmarshal([]byte(fingerprintJSON), &s.Fingerprint); err != nil {
		return nil, fmt.Errorf("parse fingerprint: %w", err)
	}

	return &s, nil
}

// UpsertAsset inserts or updates one asset record for a session.
func (sdb *SessionDB) UpsertAsset(ctx context.Context, sessionID string, a *model.DiscoveredAsset) error {
	query := `
	INSERT INTO assets (session_id, source_url, type, subtype, content_type, size,
		discovered_at, status, failure_reason, local_path, content_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id, source_url) DO UPDATE SET
		type = excluded.type,
		subtype = excluded.subtype,
		content_type = excluded.content_type,
		size = excluded.size,
		status = excluded.status,
		failure_reason = excluded.failure_reason,
		local_path = excluded.local_path,
		content_hash = excluded.content_hash
	`

	_, err := sdb.db.ExecContext(ctx, query,
		sessionID,
		a.SourceURL,
		a.Type.String(),
		a.Subtype,
		a.ContentType,
		a.Size,
		a.DiscoveredAt.UTC().Format(time.RFC3339Nano),
		string(a.Status),
		a.FailureReason,
		a.LocalPath,
		a.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

// LoadAssets retrieves every asset record for a session, keyed by URL.
func (sdb *SessionDB) LoadAssets(ctx context.Context, sessionID string) (map[string]model.DiscoveredAsset, error) {
	query := `
	SELECT source_url, type, subtype, content_type, size,
		discovered_at, status, failure_reason, local_path, content_hash
	FROM assets
	WHERE session_id = ?
	`

	rows, err := sdb.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	assets := make(map[string]model.DiscoveredAsset)
	for rows.Next() {
		var a model.DiscoveredAsset
		var assetType, status, discoveredAt string
		var subtype, contentType, failureReason, localPath, contentHash sql.NullString

		err := rows.Scan(
			&a.SourceURL,
			&assetType,
			&subtype,
			&contentType,
			&a.Size,
			&discoveredAt,
			&status,
			&failureReason,
			&localPath,
			&contentHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}

		a.Type = model.ParseAssetType(assetType)
		a.Subtype = subtype.String
		a.ContentType = contentType.String
		a.DiscoveredAt = parseTimestamp(discoveredAt)
		a.Status = model.DownloadStatus(status)
		a.FailureReason = failureReason.String
		a.LocalPath = localPath.String
		a.ContentHash = contentHash.String

		assets[a.SourceURL] = a
	}

	return assets, rows.Err()
}

// PathTable returns the URL to local path assignments recorded for a
// session, the seed for a resumed mapper.
func (sdb *SessionDB) PathTable(ctx context.Context, sessionID string) (map[string]string, error) {
	query := `
	SELECT source_url, local_path FROM assets
	WHERE session_id = ? AND local_path IS NOT NULL AND local_path != ''
	`

	rows, err := sdb.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load path table: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	table := make(map[string]string)
	for rows.Next() {
		var u, p string
		if err := rows.Scan(&u, &p); err != nil {
			return nil, fmt.Errorf("scan path row: %w", err)
		}
		table[u] = p
	}

	return table, rows.Err()
}

// MarkInterruptedOnStartup flips sessions stranded in an active state by
// a crash to interrupted, making them resumable. Returns the number of
// sessions touched. Call once, before serving any request.
func (sdb *SessionDB) MarkInterruptedOnStartup(ctx context.Context) (int64, error) {
	query := `
	UPDATE sessions
	SET status = ?, updated_at = CURRENT_TIMESTAMP
	WHERE status IN (?, ?, ?, ?)
	`

	result, err := sdb.db.ExecContext(ctx, query,
		model.StatusInterrupted.String(),
		model.StatusStarting.String(),
		model.StatusCrawling.String(),
		model.StatusProcessing.String(),
		model.StatusResuming.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes sessions (and their assets) whose last update is
// older than the retention window. Only settled sessions are eligible;
// active ones are never expired here regardless of age.
func (sdb *SessionDB) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	modifier := fmt.Sprintf("-%d seconds", int(retention.Seconds()))

	// Assets first so no orphan rows survive a crash between statements.
	assetQuery := `
	DELETE FROM assets WHERE session_id IN (
		SELECT id FROM sessions
		WHERE status IN (?, ?, ?, ?) AND updated_at < datetime('now', ?)
	)
	`
	if _, err := sdb.db.ExecContext(ctx, assetQuery,
		model.StatusCompleted.String(),
		model.StatusError.String(),
		model.StatusTimeout.String(),
		model.StatusInterrupted.String(),
		modifier,
	); err != nil {
		return 0, fmt.Errorf("delete expired assets: %w", err)
	}

	sessionQuery := `
	DELETE FROM sessions
	WHERE status IN (?, ?, ?, ?) AND updated_at < datetime('now', ?)
	`
	result, err := sdb.db.ExecContext(ctx, sessionQuery,
		model.StatusCompleted.String(),
		model.StatusError.String(),
		model.StatusTimeout.String(),
		model.StatusInterrupted.String(),
		modifier,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// ListResumable returns the sessions currently offering recovery.
func (sdb *SessionDB) ListResumable(ctx context.Context) ([]*model.Session, error) {
	query := `SELECT id FROM sessions WHERE status = ? ORDER BY updated_at DESC`

	rows, err := sdb.db.QueryContext(ctx, query, model.StatusInterrupted.String())
	if err != nil {
		return nil, fmt.Errorf("list resumable: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(ids))
	for _, id := range ids {
		s, err := sdb.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// timestampFormats contains the timestamp formats SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a timestamp string against the known formats,
// returning zero time when none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
