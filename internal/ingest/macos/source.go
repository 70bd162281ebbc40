// Package macos reads the macOS Unified Log through the `log show` export command.
package macos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/ternarybob/logalert/internal/ingest"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
	"golang.org/x/time/rate"
)

const channelName = "unified"

// Source implements interfaces.LogSource over the unified log
type Source struct {
	command    string
	predicate  string
	window     string
	batchLimit int
	logger     arbor.ILogger
	runner     Runner
	now        func() time.Time
	goos       string

	platformWarn rate.Sometimes
}

// New creates a unified log source that shells out through runner; nil uses ExecRunner
func New(config common.MacOSConfig, batchLimit int, runner Runner, logger arbor.ILogger) *Source {
	if runner == nil {
		runner = ExecRunner{}
	}
	command := config.Command
	if command == "" {
		command = "log"
	}
	return &Source{
		command:      command,
		predicate:    config.Predicate,
		window:       config.DefaultWindow,
		batchLimit:   batchLimit,
		logger:       logger,
		runner:       runner,
		now:          time.Now,
		goos:         runtime.GOOS,
		platformWarn: rate.Sometimes{First: 1, Interval: time.Hour},
	}
}

// NewFromConfig is the ingest.Factory for the macos backend
func NewFromConfig(config *common.Config, logger arbor.ILogger) (interfaces.LogSource, error) {
	return New(config.Ingest.MacOS, config.Ingest.BatchLimit, nil, logger), nil
}

func (s *Source) Name() string {
	return ingest.BackendMacOS
}

func (s *Source) InitializeBookmarks(ctx context.Context, latest *models.LogRecord) models.Checkpoint {
	cursor := ingest.SeedCursor(latest, s.window, s.now())

	s.logger.Info().
		Str("since", cursor.LastSeen.Format(time.RFC3339)).
		Bool("inclusive", cursor.Inclusive).
		Msg("Unified log bookmark initialized")

	return models.Checkpoint{channelName: cursor}
}

// GetNewRecords exports a trailing window covering the gap since the checkpoint, then keeps
// only entries past the checkpoint since the window is coarser than the timestamps.
func (s *Source) GetNewRecords(ctx context.Context, cp models.Checkpoint) ([]models.LogRecord, models.Checkpoint, error) {
	if s.goos != "darwin" {
		s.platformWarn.Do(func() {
			s.logger.Warn().Str("os", s.goos).Msg("Unified log is only available on macOS, no records")
		})
		return nil, cp, nil
	}

	next := cp.Clone()
	cursor := next[channelName]
	now := s.now()

	args := []string{"show", "--style", "json"}
	if s.predicate != "" {
		args = append(args, "--predicate", s.predicate)
	}
	args = append(args, "--last", LastArgument(now.Sub(cursor.LastSeen)))

	output, err := s.runner.Run(ctx, s.command, args...)
	if err != nil {
		var exportErr *ExportError
		if errors.As(err, &exportErr) {
			s.logger.Warn().
				Int("exit_code", exportErr.ExitCode).
				Str("stderr", exportErr.Stderr).
				Msg("Unified log export failed, no records this cycle")
			return nil, cp, nil
		}
		return nil, cp, fmt.Errorf("failed to run %s: %w", s.command, err)
	}

	parsed, err := ParseExport(output, now)
	if err != nil {
		// Keep whatever decoded before the syntax error
		s.logger.Warn().Err(err).Int("parsed", len(parsed)).Msg("Unified log export was malformed")
	}

	records := make([]models.LogRecord, 0, len(parsed))
	for _, record := range parsed {
		if cursor.After(record.Timestamp) {
			records = append(records, record)
		}
	}

	ingest.SortRecords(records)
	if len(records) > s.batchLimit {
		records = records[:s.batchLimit]
	}

	if n := len(records); n > 0 {
		cursor.LastSeen = records[n-1].Timestamp
		cursor.Inclusive = false
	}
	next[channelName] = cursor

	return records, next, nil
}

// LastArgument renders the --last window for a gap, rounded up: minutes under an hour,
// hours under a day, days otherwise.
func LastArgument(gap time.Duration) string {
	switch {
	case gap < time.Hour:
		minutes := int(math.Ceil(gap.Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		return fmt.Sprintf("%dm", minutes)
	case gap < 24*time.Hour:
		return fmt.Sprintf("%dh", int(math.Ceil(gap.Hours())))
	default:
		return fmt.Sprintf("%dd", int(math.Ceil(gap.Hours()/24)))
	}
}
