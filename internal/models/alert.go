package models

import "time"

// Alert records one (rule, record) match. Rule and Log are snapshots taken at generation time.
type Alert struct {
	ID          uint64    `json:"id" badgerhold:"key"`
	CreatedAt   time.Time `json:"created_at" badgerhold:"index"` // UTC
	AlertRuleID uint64    `json:"alert_rule_id" badgerhold:"index"`
	Rule        AlertRule `json:"rule"`
	LogID       uint64    `json:"log_id"`
	Log         LogRecord `json:"log"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
}
