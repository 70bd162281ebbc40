package models

import (
	"strings"
	"time"
)

// AlertRule is a user-defined set of optional conditions. An empty string condition or a nil Level
// is inapplicable: it never matches, it is not a wildcard.
type AlertRule struct {
	ID              uint64    `json:"id" badgerhold:"key"`
	Name            string    `json:"name" toml:"name" badgerhold:"index" validate:"required"`
	MessageContains string    `json:"message_contains,omitempty" toml:"message_contains"`
	MessageEquals   string    `json:"message_equals,omitempty" toml:"message_equals"`
	SourceContains  string    `json:"source_contains,omitempty" toml:"source_contains"`
	SourceEquals    string    `json:"source_equals,omitempty" toml:"source_equals"`
	TypeContains    string    `json:"type_contains,omitempty" toml:"type_contains"`
	TypeEquals      string    `json:"type_equals,omitempty" toml:"type_equals"`
	Level           *Level    `json:"level,omitempty" toml:"level"`
	IsActive        bool      `json:"is_active" toml:"is_active" badgerhold:"index"`
	CreatedAt       time.Time `json:"created_at" toml:"-"`
	UpdatedAt       time.Time `json:"updated_at" toml:"-"`
}

// HasConditions reports whether at least one condition is set, i.e. the rule can ever match
func (r *AlertRule) HasConditions() bool {
	for _, c := range []string{r.MessageContains, r.MessageEquals, r.SourceContains, r.SourceEquals, r.TypeContains, r.TypeEquals} {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return r.Level != nil
}

// LevelPtr returns a pointer to l, for rule level conditions
func LevelPtr(l Level) *Level {
	return &l
}
