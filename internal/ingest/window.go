package ingest

import (
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/logalert/internal/models"
)

// FallbackWindow is used when a configured default window cannot be parsed
const FallbackWindow = time.Hour

// WindowStart resolves a default window ("midnight" or a Go duration) against now.
// Midnight is local midnight of now's day.
func WindowStart(window string, now time.Time) time.Time {
	if strings.EqualFold(strings.TrimSpace(window), "midnight") {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}

	d, err := time.ParseDuration(window)
	if err != nil || d <= 0 {
		d = FallbackWindow
	}
	return now.Add(-d)
}

// SeedCursor builds the starting cursor for one channel: strictly after the newest stored
// record when there is one, otherwise inclusive from the default window start.
func SeedCursor(latest *models.LogRecord, window string, now time.Time) models.Cursor {
	if latest != nil && !latest.Timestamp.IsZero() {
		return models.Cursor{LastSeen: latest.Timestamp.UTC()}
	}
	return models.Cursor{LastSeen: WindowStart(window, now).UTC(), Inclusive: true}
}

// SortRecords orders a merged batch by timestamp, keeping read order for ties
func SortRecords(records []models.LogRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}
