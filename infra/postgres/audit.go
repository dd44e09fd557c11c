package postgres

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/fuelops/core/audit"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	actor_id TEXT,
	action TEXT NOT NULL,
	target_type TEXT,
	target_id TEXT,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_logs_action_created ON audit_logs (action, created_at);`

// AuditLog stores audit entries in the audit_logs table.
type AuditLog struct {
	pool *pgxpool.Pool
}

var _ audit.Log = (*AuditLog)(nil)

// NewAuditLog wraps pool. With ensureSchema the table is created when missing.
func NewAuditLog(ctx context.Context, pool *pgxpool.Pool, ensureSchema bool) (*AuditLog, error) {
	if ensureSchema {
		if _, err := pool.Exec(ctx, auditSchema); err != nil {
			return nil, fmt.Errorf("audit schema: %w", err)
		}
	}
	return &AuditLog{pool: pool}, nil
}

func (l *AuditLog) Append(ctx context.Context, e audit.Entry) error {
	var meta any
	if len(e.Metadata) > 0 {
		meta = string(e.Metadata)
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, target_type, target_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
	`, e.ID, e.ActorID, string(e.Action), e.TargetType, e.TargetID, meta, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit %s: %w", e.Action, err)
	}
	return nil
}

func (l *AuditLog) Query(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	sql, args := auditQuery(q)
	rows, err := l.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()
	var res []audit.Entry
	for rows.Next() {
		var (
			e                                 audit.Entry
			action                            string
			actor, targetType, targetID, meta *string
		)
		if err := rows.Scan(&e.ID, &actor, &action, &targetType, &targetID, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		e.ActorID = deref(actor)
		e.TargetType = deref(targetType)
		e.TargetID = deref(targetID)
		if meta != nil {
			e.Metadata = []byte(*meta)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 {
		// Rows come newest first when limited.
		slices.Reverse(res)
	}
	return res, nil
}

// Close is a no-op: the pool is owned by the caller.
func (l *AuditLog) Close() error { return nil }

// auditQuery builds the select for q. With a limit the newest rows are kept.
func auditQuery(q audit.Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if !q.Start.IsZero() {
		add("created_at >= ?", q.Start)
	}
	if !q.End.IsZero() {
		add("created_at <= ?", q.End)
	}
	if q.Action != "" {
		add("action = ?", string(q.Action))
	}
	if q.TargetID != "" {
		add("target_id = ?", q.TargetID)
	}
	if q.ActorID != "" {
		add("actor_id = ?", q.ActorID)
	}
	sql := "SELECT id, actor_id, action, target_type, target_id, metadata::text, created_at FROM audit_logs"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += " ORDER BY created_at DESC, seq DESC LIMIT $" + strconv.Itoa(len(args))
	} else {
		sql += " ORDER BY created_at, seq"
	}
	return sql, args
}
