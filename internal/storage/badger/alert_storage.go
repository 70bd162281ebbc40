package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const alertSequence = "Alert"

// AlertStorage implements the AlertStorage interface for Badger
type AlertStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAlertStorage creates a new AlertStorage instance
func NewAlertStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AlertStorage {
	return &AlertStorage{
		db:     db,
		logger: logger,
	}
}

// AppendAlerts stores every alert of the batch in one transaction
func (s *AlertStorage) AppendAlerts(ctx context.Context, alerts []models.Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}

	ids, err := s.db.NextIDs(alertSequence, len(alerts))
	if err != nil {
		return 0, err
	}

	err = s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		for i := range alerts {
			alert := alerts[i]
			alert.ID = ids[i]
			if err := s.db.Store().TxInsert(tx, alert.ID, &alert); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append alerts: %w", err)
	}

	return len(alerts), nil
}

func (s *AlertStorage) ListAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	query := new(badgerhold.Query).SortBy("CreatedAt", "ID").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var alerts []models.Alert
	if err := s.db.Store().Find(&alerts, query); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (s *AlertStorage) GetAlertsByRule(ctx context.Context, ruleID uint64) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := s.db.Store().Find(&alerts, badgerhold.Where("AlertRuleID").Eq(ruleID).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to get alerts for rule %d: %w", ruleID, err)
	}
	return alerts, nil
}

func (s *AlertStorage) DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := badgerhold.Where("CreatedAt").Lt(cutoff.UTC())

	count, err := s.db.Store().Count(&models.Alert{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired alerts: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.Alert{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete expired alerts: %w", err)
	}
	return int(count), nil
}
