package repository

import (
	"context"
	"time"

	"fz-pos-api/internal/config"
	"fz-pos-api/internal/model"
)

// AuditRepository stores the POS audit trail.
type AuditRepository interface {
	// Insert stores one entry and sets its ID.
	Insert(ctx context.Context, entry *model.AuditEntry) error

	// BatchInsert stores entries in one round trip where the driver allows.
	BatchInsert(ctx context.Context, entries []model.AuditEntry) error

	// List returns entries matching filter, newest first.
	List(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error)

	// DeleteBefore removes entries created before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// GetStats summarizes the stored trail.
	GetStats(ctx context.Context) (*model.AuditStats, error)

	// Close closes the repository connection.
	Close() error
}

const (
	auditTable       = "pos_audit"
	defaultListLimit = 100
	maxListLimit     = 1000
)

func listLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}

// Open connects the audit store selected by cfg.Type. Unknown types fall back
// to SQLite.
func Open(ctx context.Context, cfg *config.AuditDBConfig) (AuditRepository, error) {
	switch cfg.Type {
	case "mongodb", "mongo":
		repo, err := NewMongoDBAuditRepository(ctx, cfg.MongoURI, cfg.Name)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "postgres", "postgresql":
		return openSQL(NewPostgresAuditRepository(ctx, cfg.PostgresDSN()))
	case "mysql":
		return openSQL(NewMySQLAuditRepository(ctx, cfg.MySQLDSN()))
	default:
		return openSQL(NewSQLiteAuditRepository(ctx, cfg.Path))
	}
}

func openSQL(repo *SQLAuditRepository, err error) (AuditRepository, error) {
	if err != nil {
		return nil, err
	}
	return repo, nil
}
