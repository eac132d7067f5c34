package service

import (
	"context"
	"sync"
	"time"

	"fz-pos-api/internal/logger"

	"github.com/benbjohnson/clock"
)

// AuditPruner deletes audit entries older than a cutoff.
type AuditPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionReaper closes idle sessions.
type SessionReaper interface {
	ReapIdle() int
}

// CleanupConfig holds configuration for the cleanup scheduler.
type CleanupConfig struct {
	// Retention is how long audit entries are kept.
	Retention time.Duration

	// CleanupInterval is how often the cleanup runs.
	CleanupInterval time.Duration

	// InitialDelay postpones the first run after Start.
	InitialDelay time.Duration

	Clock clock.Clock
}

// CleanupResult reports one cleanup run.
type CleanupResult struct {
	AuditDeleted   int64 `json:"audit_deleted"`
	SessionsReaped int   `json:"sessions_reaped"`
}

// CleanupScheduler periodically prunes the audit trail and reaps idle
// sessions.
type CleanupScheduler struct {
	audit    AuditPruner
	sessions SessionReaper
	config   CleanupConfig

	ticker    *clock.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewCleanupScheduler creates a new cleanup scheduler. Either target may be
// nil.
func NewCleanupScheduler(audit AuditPruner, sessions SessionReaper, config CleanupConfig) *CleanupScheduler {
	if config.Retention == 0 {
		config.Retention = 30 * 24 * time.Hour
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = time.Hour
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	return &CleanupScheduler{
		audit:    audit,
		sessions: sessions,
		config:   config,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the cleanup scheduler.
func (s *CleanupScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = s.config.Clock.Ticker(s.config.CleanupInterval)
	ticks := s.ticker.C
	s.mu.Unlock()

	logger.Log.Infof("[CleanupScheduler] Started - Interval: %v, Retention: %v",
		s.config.CleanupInterval, s.config.Retention)

	if s.config.InitialDelay > 0 {
		timer := s.config.Clock.Timer(s.config.InitialDelay)
		go func() {
			select {
			case <-timer.C:
				s.runCleanup()
			case <-s.stopCh:
				timer.Stop()
			}
		}()
	}

	go s.run(ticks)
}

func (s *CleanupScheduler) run(ticks <-chan time.Time) {
	for {
		select {
		case <-ticks:
			s.runCleanup()
		case <-s.stopCh:
			logger.Log.Info("[CleanupScheduler] Stopped")
			return
		}
	}
}

func (s *CleanupScheduler) runCleanup() {
	res, err := s.RunNow()
	if err != nil {
		logger.Log.Errorf("[CleanupScheduler] Error during cleanup: %v", err)
		return
	}
	if res.AuditDeleted > 0 || res.SessionsReaped > 0 {
		logger.Log.Infof("[CleanupScheduler] Deleted %d audit entries, reaped %d sessions",
			res.AuditDeleted, res.SessionsReaped)
	} else {
		logger.Log.Debug("[CleanupScheduler] Nothing to clean up")
	}
}

// Stop stops the cleanup scheduler.
func (s *CleanupScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow triggers an immediate cleanup run. Sessions are reaped even when
// pruning fails.
func (s *CleanupScheduler) RunNow() (CleanupResult, error) {
	var res CleanupResult
	if s.sessions != nil {
		res.SessionsReaped = s.sessions.ReapIdle()
	}
	if s.audit == nil {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := s.config.Clock.Now().Add(-s.config.Retention)
	deleted, err := s.audit.Prune(ctx, cutoff)
	res.AuditDeleted = deleted
	return res, err
}
