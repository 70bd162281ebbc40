package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/ternarybob/logalert/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	records interfaces.LogRecordStorage
	rules   interfaces.AlertRuleStorage
	alerts  interfaces.AlertStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:      db,
		records: NewLogRecordStorage(db, logger),
		rules:   NewAlertRuleStorage(db, logger),
		alerts:  NewAlertStorage(db, logger),
		logger:  logger,
	}
}

// LogRecordStorage returns the log record storage interface
func (m *Manager) LogRecordStorage() interfaces.LogRecordStorage {
	return m.records
}

// AlertRuleStorage returns the alert rule storage interface
func (m *Manager) AlertRuleStorage() interfaces.AlertRuleStorage {
	return m.rules
}

// AlertStorage returns the alert storage interface
func (m *Manager) AlertStorage() interfaces.AlertStorage {
	return m.alerts
}

// LoadRulesFromFile seeds alert rules from a TOML file
func (m *Manager) LoadRulesFromFile(ctx context.Context, path string) (int, error) {
	return LoadRulesFromFile(ctx, m.rules, path, m.logger)
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
