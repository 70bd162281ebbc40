package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
)

// messagePreviewRunes is how much of the record message an alert carries
const messagePreviewRunes = 200

// Service implements AlertService: evaluation is pure, persistence is one bulk append per batch
type Service struct {
	rules  interfaces.AlertRuleStorage
	alerts interfaces.AlertStorage
	logger arbor.ILogger
	now    func() time.Time
}

// NewService creates a new alert service
func NewService(rules interfaces.AlertRuleStorage, alerts interfaces.AlertStorage, logger arbor.ILogger) *Service {
	return &Service{
		rules:  rules,
		alerts: alerts,
		logger: logger,
		now:    time.Now,
	}
}

// ProcessBatch reads the active rules fresh, evaluates the batch and stores the alerts
func (s *Service) ProcessBatch(ctx context.Context, records []models.LogRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rules, err := s.rules.GetActiveRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load active rules: %w", err)
	}
	if len(rules) == 0 {
		s.logger.Debug().Int("records", len(records)).Msg("No active rules, skipping evaluation")
		return 0, nil
	}

	generated := s.Evaluate(rules, records)
	if len(generated) == 0 {
		return 0, nil
	}

	stored, err := s.alerts.AppendAlerts(ctx, generated)
	if err != nil {
		return 0, fmt.Errorf("failed to store %d alerts: %w", len(generated), err)
	}

	s.logger.Info().
		Int("alerts", stored).
		Int("records", len(records)).
		Int("rules", len(rules)).
		Msg("Alerts generated")

	return stored, nil
}

// Evaluate produces one alert per matching (record, rule) pair, in record then rule order
func (s *Service) Evaluate(rules []models.AlertRule, records []models.LogRecord) []models.Alert {
	var out []models.Alert
	for _, record := range records {
		for _, rule := range rules {
			if !rule.IsActive || !Matches(&rule, &record) {
				continue
			}
			out = append(out, s.newAlert(rule, record))
		}
	}
	return out
}

func (s *Service) newAlert(rule models.AlertRule, record models.LogRecord) models.Alert {
	return models.Alert{
		CreatedAt:   s.now().UTC(),
		AlertRuleID: rule.ID,
		Rule:        rule,
		LogID:       record.ID,
		Log:         record,
		Title:       "Alert: " + rule.Name,
		Message:     "Log message: " + truncateRunes(record.Message, messagePreviewRunes) + "...",
	}
}

// Matches reports whether any set condition of rule holds for record. Unset conditions
// never match, so a rule without conditions matches nothing.
func Matches(rule *models.AlertRule, record *models.LogRecord) bool {
	return containsFold(record.Message, rule.MessageContains) ||
		equalsFold(record.Message, rule.MessageEquals) ||
		containsFold(record.Source, rule.SourceContains) ||
		equalsFold(record.Source, rule.SourceEquals) ||
		containsFold(record.Type, rule.TypeContains) ||
		equalsFold(record.Type, rule.TypeEquals) ||
		(rule.Level != nil && *rule.Level == record.Level)
}

func containsFold(value, condition string) bool {
	if strings.TrimSpace(condition) == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(value), strings.ToUpper(condition))
}

func equalsFold(value, condition string) bool {
	if strings.TrimSpace(condition) == "" {
		return false
	}
	return strings.EqualFold(value, condition)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
