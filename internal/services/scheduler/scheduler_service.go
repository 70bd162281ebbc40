package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/ternarybob/logalert/internal/interfaces"
)

const retentionJobName = "retention"

// Service prunes records and alerts older than the configured age on a cron schedule
type Service struct {
	records  interfaces.LogRecordStorage
	alerts   interfaces.AlertStorage
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
	logger   arbor.ILogger
	now      func() time.Time

	mu        sync.Mutex // Protects status fields and running
	globalMu  sync.Mutex // Prevents concurrent prune runs
	cronID    cron.EntryID
	running   bool
	isRunning bool
	lastRun   *time.Time
	lastError string
}

// NewService creates the retention scheduler. The schedule uses cron format with seconds.
func NewService(records interfaces.LogRecordStorage, alerts interfaces.AlertStorage, config common.RetentionConfig, logger arbor.ILogger) *Service {
	return &Service{
		records:  records,
		alerts:   alerts,
		schedule: config.Schedule,
		maxAge:   config.MaxAgeDuration(),
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the prune job and starts the cron runner
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if s.maxAge <= 0 {
		return fmt.Errorf("retention max age must be positive")
	}

	id, err := s.cron.AddFunc(s.schedule, s.executeJob)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cronID = id

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Str("max_age", s.maxAge.String()).
		Msg("Retention scheduler started")
	return nil
}

// Stop halts the cron runner and waits for a running prune to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cron.Remove(s.cronID)
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info().Msg("Retention scheduler stopped")
	return nil
}

// IsRunning returns true if the cron runner is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow prunes synchronously outside the schedule
func (s *Service) RunNow() error {
	return s.run()
}

// GetStatus returns the job's schedule and last run details
func (s *Service) GetStatus() interfaces.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := interfaces.JobStatus{
		Name:      retentionJobName,
		Schedule:  s.schedule,
		IsRunning: s.isRunning,
		LastError: s.lastError,
	}
	if s.lastRun != nil {
		lastRun := *s.lastRun
		status.LastRun = &lastRun
	}
	if s.running {
		if next := s.cron.Entry(s.cronID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

func (s *Service) executeJob() {
	defer common.RecoverAndLog(s.logger, "retentionJob")

	if err := s.run(); err != nil {
		s.logger.Error().Err(err).Str("job_name", retentionJobName).Msg("Retention job failed")
	}
}

func (s *Service) run() (err error) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	start := s.now()
	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		s.mu.Lock()
		s.isRunning = false
		s.lastRun = &start
		s.lastError = ""
		if err != nil {
			s.lastError = err.Error()
		}
		s.mu.Unlock()
	}()

	ctx := context.Background()
	cutoff := start.Add(-s.maxAge)

	records, err := s.records.DeleteRecordsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune log records: %w", err)
	}

	alerts, err := s.alerts.DeleteAlertsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune alerts: %w", err)
	}

	s.logger.Info().
		Str("job_name", retentionJobName).
		Str("cutoff", cutoff.Format(time.RFC3339)).
		Int("records", records).
		Int("alerts", alerts).
		Str("duration", s.now().Sub(start).String()).
		Msg("Retention job completed")
	return nil
}
