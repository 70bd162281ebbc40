package badger

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
)

// RuleFile is the TOML layout of a rule seed file:
//
//	[[rules]]
//	name = "db-connection"
//	message_contains = "connection failed"
//	is_active = true
type RuleFile struct {
	Rules []models.AlertRule `toml:"rules" validate:"dive"`
}

// LoadRulesFromFile upserts every rule in the file by name and returns how many were saved.
// A missing file is not an error. Invalid rules are skipped with a warning.
func LoadRulesFromFile(ctx context.Context, ruleStorage interfaces.AlertRuleStorage, path string, logger arbor.ILogger) (int, error) {
	if path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("file", path).Msg("Rules file does not exist, skipping")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file RuleFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	validate := validator.New()
	loaded := 0
	for i := range file.Rules {
		rule := file.Rules[i]

		if err := validate.Struct(&rule); err != nil {
			logger.Warn().Err(err).Int("index", i).Str("file", path).Msg("Skipping invalid rule")
			continue
		}
		if !rule.HasConditions() {
			logger.Warn().Str("rule", rule.Name).Msg("Rule has no conditions and will never match")
		}

		rule.ID = 0 // Identity comes from the name
		if err := ruleStorage.SaveRule(ctx, &rule); err != nil {
			logger.Warn().Err(err).Str("rule", rule.Name).Msg("Failed to save rule")
			continue
		}
		loaded++
	}

	logger.Info().Int("count", loaded).Str("file", path).Msg("Alert rules loaded")
	return loaded, nil
}
