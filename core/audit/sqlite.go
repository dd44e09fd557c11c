package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS audit_logs (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT NOT NULL UNIQUE,
        actor_id TEXT,
        action TEXT NOT NULL,
        target_type TEXT,
        target_id TEXT,
        metadata TEXT,
        created_at INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS audit_logs_action_created ON audit_logs (action, created_at);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append inserts the entry.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, target_type, target_id, metadata, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActorID, string(e.Action), e.TargetType, e.TargetID, string(e.Metadata), e.CreatedAt.UnixNano())
	return err
}

// Query returns entries matching q ordered by creation time.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Entry, error) {
	var args []any
	query := `SELECT id, actor_id, action, target_type, target_id, metadata, created_at FROM audit_logs WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Action != "" {
		query += ` AND action = ?`
		args = append(args, string(q.Action))
	}
	if q.TargetID != "" {
		query += ` AND target_id = ?`
		args = append(args, q.TargetID)
	}
	if q.ActorID != "" {
		query += ` AND actor_id = ?`
		args = append(args, q.ActorID)
	}
	query += ` ORDER BY created_at, seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Entry
	for rows.Next() {
		var (
			e      Entry
			action string
			meta   string
			ts     int64
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &action, &e.TargetType, &e.TargetID, &meta, &ts); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		e.Metadata = []byte(meta)
		e.CreatedAt = unixNanoUTC(ts)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return q.finalize(res), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
