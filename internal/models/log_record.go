package models

import "time"

// LogRecord is one normalized log entry. Sources build it, the coordinator hands it to storage
// which assigns ID; after that it is never modified.
type LogRecord struct {
	ID        uint64    `json:"id" badgerhold:"key"`
	Timestamp time.Time `json:"timestamp" badgerhold:"index"` // Always UTC
	EventID   *int      `json:"event_id,omitempty"`           // Source specific: Windows event id, syslog pid, macOS process id
	Level     Level     `json:"level"`
	Source    string    `json:"source"`            // Process or provider name
	Type      string    `json:"type"`              // Category or task name
	Message   string    `json:"message"`           // Unbounded
	Channel   string    `json:"channel,omitempty"` // Checkpoint channel the record was read from
}

// IntPtr returns a pointer to v, for optional EventID values
func IntPtr(v int) *int {
	return &v
}
