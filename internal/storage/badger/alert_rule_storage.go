package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const ruleSequence = "AlertRule"

// AlertRuleStorage implements the AlertRuleStorage interface for Badger
type AlertRuleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAlertRuleStorage creates a new AlertRuleStorage instance
func NewAlertRuleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AlertRuleStorage {
	return &AlertRuleStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AlertRuleStorage) GetActiveRules(ctx context.Context) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	if err := s.db.Store().Find(&rules, badgerhold.Where("IsActive").Eq(true).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to get active rules: %w", err)
	}
	return rules, nil
}

func (s *AlertRuleStorage) GetRule(ctx context.Context, id uint64) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := s.db.Store().Get(id, &rule); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("rule %d: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

func (s *AlertRuleStorage) GetRuleByName(ctx context.Context, name string) (*models.AlertRule, error) {
	var rules []models.AlertRule
	if err := s.db.Store().Find(&rules, badgerhold.Where("Name").Eq(name).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to get rule by name: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule %q: %w", name, interfaces.ErrNotFound)
	}
	return &rules[0], nil
}

func (s *AlertRuleStorage) ListRules(ctx context.Context) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	if err := s.db.Store().Find(&rules, new(badgerhold.Query).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (s *AlertRuleStorage) SaveRule(ctx context.Context, rule *models.AlertRule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}

	now := time.Now().UTC()
	rule.UpdatedAt = now

	if rule.ID == 0 {
		existing, err := s.GetRuleByName(ctx, rule.Name)
		if err == nil {
			rule.ID = existing.ID
			rule.CreatedAt = existing.CreatedAt
		}
	}

	if rule.ID == 0 {
		ids, err := s.db.NextIDs(ruleSequence, 1)
		if err != nil {
			return err
		}
		rule.ID = ids[0]
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	if err := s.db.Store().Upsert(rule.ID, rule); err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

func (s *AlertRuleStorage) DeleteRule(ctx context.Context, id uint64) error {
	if err := s.db.Store().Delete(id, &models.AlertRule{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("rule %d: %w", id, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}
