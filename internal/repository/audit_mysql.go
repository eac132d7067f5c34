package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fz-pos-api/internal/logger"

	"github.com/go-sql-driver/mysql"
)

// NewMySQLAuditRepository connects to MySQL.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLAuditRepository(ctx context.Context, dsn string) (*SQLAuditRepository, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.Timeout = 5 * time.Second

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL connector: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	repo, err := newSQLAuditRepository(ctx, db, dialect{
		name: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS pos_audit (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				session_id VARCHAR(64) NOT NULL,
				action VARCHAR(32) NOT NULL,
				code VARCHAR(255) NOT NULL DEFAULT '',
				product_id BIGINT NOT NULL DEFAULT 0,
				order_id BIGINT NOT NULL DEFAULT 0,
				detail TEXT NOT NULL,
				created_at BIGINT NOT NULL,
				INDEX idx_pos_audit_session (session_id),
				INDEX idx_pos_audit_created (created_at)
			)`,
		},
		placeholder: questionMark,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Log.Infof("[MySQLAuditRepository] Initialized with database: %s", cfg.DBName)
	return repo, nil
}
