package interfaces

import "time"

// JobStatus represents the current status of a scheduled job
type JobStatus struct {
	Name      string
	Schedule  string
	LastRun   *time.Time
	NextRun   *time.Time
	IsRunning bool
	LastError string
}

// SchedulerService runs cron-scheduled maintenance jobs
type SchedulerService interface {
	// Start the scheduler
	Start() error

	// Stop the scheduler and wait for running jobs
	Stop() error

	// IsRunning returns true if scheduler is active
	IsRunning() bool

	// RunNow executes the job synchronously outside the schedule
	RunNow() error

	// GetStatus returns the job's schedule and last run details
	GetStatus() JobStatus
}
