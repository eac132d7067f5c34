package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fz-pos-api/internal/model"
)

// dialect holds what differs between the SQL audit stores.
type dialect struct {
	name   string
	schema []string
	// placeholder returns the bind marker for the 1-based argument n.
	placeholder func(n int) string
	// returningID is set when INSERT ... RETURNING id is supported.
	returningID bool
	// copyIn, when set, returns a bulk-load statement for the columns.
	copyIn func(table string, columns ...string) string
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

var auditColumns = []string{"session_id", "action", "code", "product_id", "order_id", "detail", "created_at"}

// SQLAuditRepository implements AuditRepository on database/sql.
// created_at is stored as Unix milliseconds in every dialect.
type SQLAuditRepository struct {
	db *sql.DB
	d  dialect
}

func newSQLAuditRepository(ctx context.Context, db *sql.DB, d dialect) (*SQLAuditRepository, error) {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}
	return &SQLAuditRepository{db: db, d: d}, nil
}

func (r *SQLAuditRepository) placeholders(from, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = r.d.placeholder(from + i)
	}
	return strings.Join(marks, ", ")
}

func auditArgs(e *model.AuditEntry) []interface{} {
	return []interface{}{
		e.SessionID,
		string(e.Action),
		e.Code,
		e.ProductID,
		e.OrderID,
		e.Detail,
		e.CreatedAt.UTC().UnixMilli(),
	}
}

func (r *SQLAuditRepository) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		auditTable, strings.Join(auditColumns, ", "), r.placeholders(1, len(auditColumns)))
}

func (r *SQLAuditRepository) Insert(ctx context.Context, entry *model.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := r.insertQuery()

	if r.d.returningID {
		if err := r.db.QueryRowContext(ctx, query+" RETURNING id", auditArgs(entry)...).Scan(&entry.ID); err != nil {
			return fmt.Errorf("failed to insert audit entry: %w", err)
		}
		return nil
	}

	res, err := r.db.ExecContext(ctx, query, auditArgs(entry)...)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

func (r *SQLAuditRepository) BatchInsert(ctx context.Context, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := r.insertQuery()
	if r.d.copyIn != nil {
		query = r.d.copyIn(auditTable, auditColumns...)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, auditArgs(e)...); err != nil {
			return fmt.Errorf("failed to batch insert entry %d: %w", i, err)
		}
	}
	if r.d.copyIn != nil {
		// Flush the COPY buffer.
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to flush copy: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLAuditRepository) List(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, cond+" "+r.d.placeholder(len(args)))
	}
	if filter.SessionID != "" {
		add("session_id =", filter.SessionID)
	}
	if filter.Action != "" {
		add("action =", string(filter.Action))
	}
	if !filter.Since.IsZero() {
		add("created_at >=", filter.Since.UTC().UnixMilli())
	}

	query := fmt.Sprintf("SELECT id, %s FROM %s", strings.Join(auditColumns, ", "), auditTable)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT %d", listLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var (
			e       model.AuditEntry
			action  string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &action, &e.Code, &e.ProductID, &e.OrderID, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = model.AuditAction(action)
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLAuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < %s", auditTable, r.d.placeholder(1))
	res, err := r.db.ExecContext(ctx, query, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLAuditRepository) GetStats(ctx context.Context) (*model.AuditStats, error) {
	stats := &model.AuditStats{ByAction: make(map[model.AuditAction]int64)}

	var oldest, newest sql.NullInt64
	query := fmt.Sprintf("SELECT COUNT(*), COUNT(DISTINCT session_id), MIN(created_at), MAX(created_at) FROM %s", auditTable)
	if err := r.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Sessions, &oldest, &newest); err != nil {
		return nil, fmt.Errorf("failed to read audit stats: %w", err)
	}
	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64).UTC()
		stats.Oldest = &t
	}
	if newest.Valid {
		t := time.UnixMilli(newest.Int64).UTC()
		stats.Newest = &t
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT action, COUNT(*) FROM %s GROUP BY action", auditTable))
	if err != nil {
		return nil, fmt.Errorf("failed to count audit actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			action string
			n      int64
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		stats.ByAction[model.AuditAction(action)] = n
	}
	return stats, rows.Err()
}

func (r *SQLAuditRepository) Close() error {
	return r.db.Close()
}

var _ AuditRepository = (*SQLAuditRepository)(nil)
