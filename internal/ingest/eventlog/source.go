// Package eventlog reads Windows Event Log channels through a forward-only, resumable query.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/ternarybob/logalert/internal/ingest"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
)

// ErrUnsupported is returned by the system reader on platforms without the Event Log API
var ErrUnsupported = errors.New("windows event log is not available on this platform")

// EventReader runs one forward query against a channel and returns at most max events, oldest first
type EventReader interface {
	Query(ctx context.Context, channel, xpath string, max int) ([]RawEvent, error)
}

// Source implements interfaces.LogSource with one cursor per channel
type Source struct {
	channels   []string
	window     string
	batchLimit int
	reader     EventReader
	logger     arbor.ILogger
	now        func() time.Time
}

// New creates an event log source over reader
func New(config common.WindowsConfig, batchLimit int, reader EventReader, logger arbor.ILogger) *Source {
	return &Source{
		channels:   config.Channels,
		window:     config.DefaultWindow,
		batchLimit: batchLimit,
		reader:     reader,
		logger:     logger,
		now:        time.Now,
	}
}

// NewFromConfig is the ingest.Factory for the windows backend, bound to the system reader
func NewFromConfig(config *common.Config, logger arbor.ILogger) (interfaces.LogSource, error) {
	if len(config.Ingest.Windows.Channels) == 0 {
		return nil, fmt.Errorf("at least one windows channel is required")
	}
	return New(config.Ingest.Windows, config.Ingest.BatchLimit, newSystemReader(logger), logger), nil
}

func (s *Source) Name() string {
	return ingest.BackendWindows
}

// Close releases reader resources such as cached publisher metadata
func (s *Source) Close() error {
	if closer, ok := s.reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Source) InitializeBookmarks(ctx context.Context, latest *models.LogRecord) models.Checkpoint {
	now := s.now()
	cp := make(models.Checkpoint, len(s.channels))
	for _, channel := range s.channels {
		cp[channel] = ingest.SeedCursor(latest, s.window, now)
	}

	s.logger.Info().
		Strs("channels", s.channels).
		Str("since", ingest.SeedCursor(latest, s.window, now).LastSeen.Format(time.RFC3339)).
		Msg("Event log bookmarks initialized")

	return cp
}

type channelResult struct {
	records []models.LogRecord
	cursor  models.Cursor
	err     error
}

// GetNewRecords reads every channel concurrently. A failing channel keeps its cursor and does
// not affect the others; an error is returned only when all channels failed.
func (s *Source) GetNewRecords(ctx context.Context, cp models.Checkpoint) ([]models.LogRecord, models.Checkpoint, error) {
	results := make([]channelResult, len(s.channels))

	var wg sync.WaitGroup
	for i, channel := range s.channels {
		cursor := cp[channel]
		results[i] = channelResult{cursor: cursor, err: fmt.Errorf("channel %s reader did not complete", channel)}

		common.SafeGoGroup(&wg, s.logger, "eventlog:"+channel, func() {
			records, next, err := s.readChannel(ctx, channel, cursor)
			results[i] = channelResult{records: records, cursor: next, err: err}
		})
	}
	wg.Wait()

	next := cp.Clone()
	var merged []models.LogRecord
	var errs []error
	for i, channel := range s.channels {
		result := results[i]
		if result.err != nil {
			s.logger.Error().Err(result.err).Str("channel", channel).Msg("Failed to read event log channel")
			errs = append(errs, result.err)
			continue
		}
		next[channel] = result.cursor
		merged = append(merged, result.records...)
	}

	if len(s.channels) > 0 && len(errs) == len(s.channels) {
		return nil, cp, fmt.Errorf("all event log channels failed: %w", errors.Join(errs...))
	}

	ingest.SortRecords(merged)
	return merged, next, nil
}

func (s *Source) readChannel(ctx context.Context, channel string, cursor models.Cursor) ([]models.LogRecord, models.Cursor, error) {
	raws, err := s.reader.Query(ctx, channel, buildQuery(cursor), s.batchLimit)
	if err != nil {
		return nil, cursor, err
	}

	now := s.now()
	bound := cursor
	timeBound := cursor.Position == 0

	records := make([]models.LogRecord, 0, len(raws))
	for _, raw := range raws {
		event, err := toRecord(raw, channel, now)
		if err != nil {
			s.logger.Debug().Err(err).Str("channel", channel).Msg("Skipping unparsable event")
			continue
		}

		if event.recordID > cursor.Position {
			cursor.Position = event.recordID
		}

		// Time bound queries are millisecond precise; drop what the seed already covers
		if timeBound && !bound.After(event.record.Timestamp) {
			continue
		}
		records = append(records, event.record)
	}

	ingest.SortRecords(records)
	if n := len(records); n > 0 {
		if last := records[n-1].Timestamp; last.After(cursor.LastSeen) {
			cursor.LastSeen = last
		}
		cursor.Inclusive = false
	}

	return records, cursor, nil
}
