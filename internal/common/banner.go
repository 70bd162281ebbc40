package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective ingest settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("LogAlert", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("backend", config.Ingest.Backend).
		Str("interval", config.Ingest.Interval).
		Int("batch_limit", config.Ingest.BatchLimit).
		Str("storage", config.Storage.Badger.Path).
		Bool("retention", config.Retention.Enabled).
		Msg("LogAlert starting")
}
