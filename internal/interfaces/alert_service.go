package interfaces

import (
	"context"

	"github.com/ternarybob/logalert/internal/models"
)

// AlertService evaluates batches of records against the active rules
type AlertService interface {
	// Evaluate matches records against rules without touching storage
	Evaluate(rules []models.AlertRule, records []models.LogRecord) []models.Alert

	// ProcessBatch loads the active rules, evaluates the batch and persists any alerts in one bulk call.
	// Returns the number of alerts stored.
	ProcessBatch(ctx context.Context, records []models.LogRecord) (int, error)
}
