package service

import (
	"context"
	"errors"
	"time"

	"fz-pos-api/internal/cache"
	"fz-pos-api/internal/model"
	"fz-pos-api/internal/repository"
)

// AuditService records POS events. With a buffer, writes go to Redis first
// and reach the repository in batches; otherwise they go straight to the
// repository.
type AuditService struct {
	repo   repository.AuditRepository
	buffer *cache.RedisAuditBuffer
}

// NewAuditService creates an audit service. buffer may be nil.
func NewAuditService(repo repository.AuditRepository, buffer *cache.RedisAuditBuffer) *AuditService {
	return &AuditService{repo: repo, buffer: buffer}
}

// Record stores one entry.
func (s *AuditService) Record(ctx context.Context, entry model.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if s.buffer != nil {
		return s.buffer.Add(ctx, entry)
	}
	if s.repo == nil {
		return errors.New("audit store not configured")
	}
	return s.repo.Insert(ctx, &entry)
}

// List returns persisted entries, newest first. Buffered entries appear once
// flushed.
func (s *AuditService) List(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	if s.repo == nil {
		return nil, errors.New("audit store not configured")
	}
	return s.repo.List(ctx, filter)
}

// AuditOverview is the admin view of the audit trail.
type AuditOverview struct {
	*model.AuditStats
	Buffered int64 `json:"buffered"`
}

// Stats summarizes the trail including entries still in the buffer.
func (s *AuditService) Stats(ctx context.Context) (*AuditOverview, error) {
	if s.repo == nil {
		return nil, errors.New("audit store not configured")
	}
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	out := &AuditOverview{AuditStats: stats}
	if s.buffer != nil {
		if n, err := s.buffer.Count(ctx); err == nil {
			out.Buffered = n
		}
	}
	return out, nil
}

// Prune deletes entries created before cutoff.
func (s *AuditService) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.DeleteBefore(ctx, cutoff)
}
