package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/logalert/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist in storage
var ErrNotFound = errors.New("not found")

// LogRecordStorage persists normalized log records
type LogRecordStorage interface {
	// GetMostRecentRecord returns the record with the newest timestamp, or nil when the store is empty
	GetMostRecentRecord(ctx context.Context) (*models.LogRecord, error)

	// AppendRecords inserts the batch in one transaction and returns the records with their assigned IDs
	AppendRecords(ctx context.Context, records []models.LogRecord) ([]models.LogRecord, error)

	GetRecord(ctx context.Context, id uint64) (*models.LogRecord, error)
	CountRecords(ctx context.Context) (int, error)

	// DeleteRecordsBefore removes records stamped before cutoff and returns how many were removed
	DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AlertRuleStorage persists alert rules
type AlertRuleStorage interface {
	// GetActiveRules returns every rule with IsActive set, ordered by ID
	GetActiveRules(ctx context.Context) ([]models.AlertRule, error)

	GetRule(ctx context.Context, id uint64) (*models.AlertRule, error)
	GetRuleByName(ctx context.Context, name string) (*models.AlertRule, error)
	ListRules(ctx context.Context) ([]models.AlertRule, error)

	// SaveRule inserts the rule, or replaces the existing rule with the same name keeping its ID
	SaveRule(ctx context.Context, rule *models.AlertRule) error

	DeleteRule(ctx context.Context, id uint64) error
}

// AlertStorage persists generated alerts
type AlertStorage interface {
	// AppendAlerts inserts the batch in one transaction and returns how many were stored
	AppendAlerts(ctx context.Context, alerts []models.Alert) (int, error)

	// ListAlerts returns the newest alerts first; limit <= 0 means no limit
	ListAlerts(ctx context.Context, limit int) ([]models.Alert, error)

	GetAlertsByRule(ctx context.Context, ruleID uint64) ([]models.Alert, error)
	DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// StorageManager groups the storages behind one database handle
type StorageManager interface {
	LogRecordStorage() LogRecordStorage
	AlertRuleStorage() AlertRuleStorage
	AlertStorage() AlertStorage

	// LoadRulesFromFile seeds rules from a TOML file, upserting by name
	LoadRulesFromFile(ctx context.Context, path string) (int, error)

	Close() error
}
