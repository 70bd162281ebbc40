package ingest

import (
	"strings"

	"github.com/ternarybob/logalert/internal/models"
)

// Keyword tiers, checked from most to least severe
var (
	criticalKeywords = []string{"panic", "fatal", "critical", "segfault", "out of memory"}
	errorKeywords    = []string{"error", "fail", "exception", "denied"}
	warningKeywords  = []string{"warn", "deprecated", "timeout"}
)

// InferLevel classifies a message without an explicit severity by keyword scan.
// A message that hits several tiers takes the most severe one.
func InferLevel(message string) models.Level {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, criticalKeywords):
		return models.LevelCritical
	case containsAny(lower, errorKeywords):
		return models.LevelError
	case containsAny(lower, warningKeywords):
		return models.LevelWarning
	default:
		return models.LevelInformation
	}
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
