package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Source is the corpus the task refreshes.
	Source Source

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// Enabled indicates whether the task is active.
	Enabled bool
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// Interval is the refresh period applied to every source.
	Interval time.Duration
}

// DefaultSchedulerConfig refreshes each source every ten minutes.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:  true,
		Interval: 10 * time.Minute,
	}
}

// RefreshTaskID returns the task id for a source refresh.
func RefreshTaskID(source Source) string {
	return "refresh:" + string(source)
}
