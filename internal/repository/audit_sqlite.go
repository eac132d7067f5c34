package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"fz-pos-api/internal/logger"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// NewSQLiteAuditRepository opens (or creates) the audit trail at dbPath.
func NewSQLiteAuditRepository(ctx context.Context, dbPath string) (*SQLAuditRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	repo, err := newSQLAuditRepository(ctx, db, dialect{
		name: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS pos_audit (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL,
				action TEXT NOT NULL,
				code TEXT NOT NULL DEFAULT '',
				product_id INTEGER NOT NULL DEFAULT 0,
				order_id INTEGER NOT NULL DEFAULT 0,
				detail TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_pos_audit_session ON pos_audit(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_pos_audit_created ON pos_audit(created_at)`,
		},
		placeholder: questionMark,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Log.Infof("[SQLiteAuditRepository] Initialized with database: %s", dbPath)
	return repo, nil
}
