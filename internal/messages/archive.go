package messages

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"encmirror/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the archive was written by an incompatible build.
var ErrSchemaMismatch = errors.New("message archive schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Archive persists messages to SQLite.
type Archive struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenArchive opens or creates the archive database at path.
func OpenArchive(path string, logger *slog.Logger) (*Archive, error) {
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
	a := &Archive{db: db, path: path, logger: logging.NewComponentLogger(logger, "message-archive")}
	if err := a.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Path returns the database file location.
func (a *Archive) Path() string { return a.path }

// Close closes the database.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Archive) initSchema(ctx context.Context) error {
	var tableExists int
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return a.createSchema(ctx)
	}
	var version int
	if err := a.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, a.path)
	}
	return nil
}

func (a *Archive) createSchema(ctx context.Context) error {
	tx, err := a.db.BeginTx(ctx, nil)
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

// Append implements Sink. Failures are logged; the in-memory feed is
// unaffected.
func (a *Archive) Append(msg Message) {
	if err := a.Insert(context.Background(), msg); err != nil {
		a.logger.Warn("archive message failed",
			logging.Uint64("message_id", msg.ID),
			logging.Error(err),
		)
	}
}

// Insert stores msg, replacing any row with the same id.
func (a *Archive) Insert(ctx context.Context, msg Message) error {
	return retryOnBusy(ctx, func() error {
		_, err := a.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO messages (id, created_at, level, message, source, page, action, request_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(msg.ID), msg.Time.UTC().Format(time.RFC3339Nano), string(msg.Level), msg.Message,
			msg.Source, msg.Page, msg.Action, msg.RequestID,
		)
		return err
	})
}

// LastID returns the newest archived id, or 0 for an empty archive.
func (a *Archive) LastID(ctx context.Context) (uint64, error) {
	var id sql.NullInt64
	if err := a.db.QueryRowContext(ctx, "SELECT MAX(id) FROM messages").Scan(&id); err != nil {
		return 0, fmt.Errorf("read last message id: %w", err)
	}
	if !id.Valid || id.Int64 < 0 {
		return 0, nil
	}
	return uint64(id.Int64), nil
}

// Since pages through archived messages newer than since in id order,
// applying filter and returning at most limit rows (0 means no limit).
func (a *Archive) Since(ctx context.Context, since uint64, filter Filter, limit int) ([]Message, error) {
	var (
		clauses = []string{"id > ?"}
		args    = []any{int64(since)}
	)
	if filter.Page != "" {
		clauses = append(clauses, "page = ? COLLATE NOCASE")
		args = append(args, filter.Page)
	}
	if filter.RequestID != "" {
		clauses = append(clauses, "request_id = ?")
		args = append(args, filter.RequestID)
	}
	if len(filter.Levels) > 0 {
		marks := make([]string, len(filter.Levels))
		for i, lvl := range filter.Levels {
			marks[i] = "?"
			args = append(args, strings.ToLower(string(lvl)))
		}
		clauses = append(clauses, "level IN ("+strings.Join(marks, ",")+")")
	}
	query := "SELECT id, created_at, level, message, source, page, action, request_id FROM messages WHERE " +
		strings.Join(clauses, " AND ") + " ORDER BY id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			msg     Message
			created string
			level   string
		)
		if err := rows.Scan(&msg.ID, &created, &level, &msg.Message, &msg.Source, &msg.Page, &msg.Action, &msg.RequestID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Level = Level(level)
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			msg.Time = ts
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
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

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
