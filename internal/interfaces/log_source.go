package interfaces

import (
	"context"

	"github.com/ternarybob/logalert/internal/models"
)

// LogSource turns one platform log feed into normalized records. The checkpoint is owned by
// the caller and threaded through every read; sources hold no cursor state of their own.
type LogSource interface {
	// Name returns the backend name ("windows", "syslog", "macos")
	Name() string

	// InitializeBookmarks seeds one cursor per channel. latest is the newest stored record or nil.
	// It never fails: problems are logged and the source falls back to its default window.
	InitializeBookmarks(ctx context.Context, latest *models.LogRecord) models.Checkpoint

	// GetNewRecords returns the records past cp in non-decreasing timestamp order per channel,
	// together with the advanced checkpoint. Per-channel failures are logged and skipped.
	GetNewRecords(ctx context.Context, cp models.Checkpoint) ([]models.LogRecord, models.Checkpoint, error)
}
