// Package syslog reads a syslog format text file incrementally by byte offset.
package syslog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/ternarybob/logalert/internal/ingest"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
	"golang.org/x/time/rate"
)

// channelName is the single checkpoint channel of the syslog source
const channelName = "syslog"

// Source implements interfaces.LogSource over one syslog file
type Source struct {
	path       string
	window     string
	batchLimit int
	logger     arbor.ILogger
	now        func() time.Time

	missingWarn rate.Sometimes
}

// New creates a syslog source
func New(config common.SyslogConfig, batchLimit int, logger arbor.ILogger) *Source {
	return &Source{
		path:        config.Path,
		window:      config.DefaultWindow,
		batchLimit:  batchLimit,
		logger:      logger,
		now:         time.Now,
		missingWarn: rate.Sometimes{First: 1, Interval: 10 * time.Minute},
	}
}

// NewFromConfig is the ingest.Factory for the syslog backend
func NewFromConfig(config *common.Config, logger arbor.ILogger) (interfaces.LogSource, error) {
	if config.Ingest.Syslog.Path == "" {
		return nil, fmt.Errorf("syslog path is required")
	}
	return New(config.Ingest.Syslog, config.Ingest.BatchLimit, logger), nil
}

func (s *Source) Name() string {
	return ingest.BackendSyslog
}

// InitializeBookmarks starts at the current end of file so lines already on disk are not
// replayed. If the file cannot be inspected the offset falls back to zero and the timestamp
// filter alone decides what the first read returns.
func (s *Source) InitializeBookmarks(ctx context.Context, latest *models.LogRecord) models.Checkpoint {
	cursor := ingest.SeedCursor(latest, s.window, s.now())

	info, err := os.Stat(s.path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Cannot stat syslog file, first read will filter by timestamp")
		cursor.Position = 0
		cursor.Rewound = true
	} else {
		cursor.Position = info.Size()
	}

	s.logger.Info().
		Str("path", s.path).
		Int64("offset", cursor.Position).
		Str("since", cursor.LastSeen.Format(time.RFC3339)).
		Msg("Syslog bookmark initialized")

	return models.Checkpoint{channelName: cursor}
}

// GetNewRecords reads complete lines past the checkpoint offset and keeps those stamped after
// the checkpoint time, at most batchLimit records
func (s *Source) GetNewRecords(ctx context.Context, cp models.Checkpoint) ([]models.LogRecord, models.Checkpoint, error) {
	next := cp.Clone()
	cursor := next[channelName]

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.missingWarn.Do(func() {
				s.logger.Warn().Str("path", s.path).Msg("Syslog file not found, no records this cycle")
			})
			return nil, cp, nil
		}
		return nil, cp, fmt.Errorf("failed to open syslog file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, cp, fmt.Errorf("failed to stat syslog file: %w", err)
	}
	size := info.Size()

	if size < cursor.Position {
		s.logger.Info().
			Str("path", s.path).
			Int64("offset", cursor.Position).
			Int64("size", size).
			Msg("Syslog file shrank, assuming rotation and reading from start")
		cursor.Position = 0
		cursor.Rewound = true
	}

	if size == cursor.Position {
		next[channelName] = cursor
		return nil, next, nil
	}

	if _, err := file.Seek(cursor.Position, io.SeekStart); err != nil {
		return nil, cp, fmt.Errorf("failed to seek syslog file: %w", err)
	}

	now := s.now()
	reader := bufio.NewReader(file)
	offset := cursor.Position
	dropped, stale := 0, 0
	var records []models.LogRecord

	for len(records) < s.batchLimit {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// An unterminated last line is still being written: leave it for the next cycle
				break
			}
			return nil, cp, fmt.Errorf("failed to read syslog file: %w", err)
		}
		offset += int64(len(line))

		record, ok := ParseLine(strings.TrimRight(line, "\r\n"), now)
		if !ok {
			dropped++
			continue
		}
		// Late writers can append lines older than what was already returned
		if !cursor.After(record.Timestamp) {
			stale++
			continue
		}
		records = append(records, record)
	}

	if dropped > 0 {
		s.logger.Debug().Int("count", dropped).Msg("Dropped non-conforming syslog lines")
	}
	if stale > 0 {
		s.logger.Debug().Int("count", stale).Str("since", cursor.LastSeen.Format(time.RFC3339Nano)).Msg("Skipped syslog lines at or before the checkpoint")
	}

	ingest.SortRecords(records)

	cursor.Position = offset
	if offset >= size {
		cursor.Rewound = false
	}
	if n := len(records); n > 0 {
		if last := records[n-1].Timestamp; last.After(cursor.LastSeen) {
			cursor.LastSeen = last
		}
		cursor.Inclusive = false
	}
	next[channelName] = cursor

	return records, next, nil
}
