package syslog

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ternarybob/logalert/internal/ingest"
	"github.com/ternarybob/logalert/internal/models"
)

// RecordType is the Type given to every syslog record
const RecordType = "Syslog"

var (
	// 2024-03-01T12:00:00.123456+01:00 host sshd[123]: message
	isoLinePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))\s+(\S+)\s+([^\[\s:]+)(?:\[(\d+)\])?:\s*(.*)$`)

	// Mar  1 12:00:00 host sshd[123]: message
	legacyLinePattern = regexp.MustCompile(`^(\w{3})\s+(\d{1,2})\s+(\d{2}:\d{2}:\d{2})\s+(\S+)\s+([^\[\s:]+)(?:\[(\d+)\])?:\s*(.*)$`)
)

// ParseLine parses one syslog line, trying the ISO 8601 grammar first and the legacy BSD
// grammar second. now is used to infer the year of legacy lines. ok is false when neither matches.
func ParseLine(line string, now time.Time) (record models.LogRecord, ok bool) {
	if m := isoLinePattern.FindStringSubmatch(line); m != nil {
		ts, err := time.Parse(time.RFC3339Nano, m[1])
		if err != nil {
			return models.LogRecord{}, false
		}
		return build(ts, m[3], m[4], m[5]), true
	}

	if m := legacyLinePattern.FindStringSubmatch(line); m != nil {
		ts, err := legacyTimestamp(m[1], m[2], m[3], now)
		if err != nil {
			return models.LogRecord{}, false
		}
		return build(ts, m[5], m[6], m[7]), true
	}

	return models.LogRecord{}, false
}

// legacyTimestamp places a year-less timestamp in now's year, stepping back one year when
// that lands in the future (a December line read in January). Feb 29 read in a non-leap year
// belongs to the previous year.
func legacyTimestamp(month, day, clock string, now time.Time) (time.Time, error) {
	ts, err := parseLegacy(month, day, clock, now.Year(), now.Location())
	if err != nil {
		prev, prevErr := parseLegacy(month, day, clock, now.Year()-1, now.Location())
		if prevErr != nil {
			return time.Time{}, err
		}
		return prev, nil
	}
	if ts.After(now) {
		ts = ts.AddDate(-1, 0, 0)
	}
	return ts, nil
}

func parseLegacy(month, day, clock string, year int, loc *time.Location) (time.Time, error) {
	value := fmt.Sprintf("%s %s %s %d", month, day, clock, year)
	return time.ParseInLocation("Jan 2 15:04:05 2006", value, loc)
}

func build(ts time.Time, process, pid, message string) models.LogRecord {
	record := models.LogRecord{
		Timestamp: ts.UTC(),
		Level:     ingest.InferLevel(message),
		Source:    process,
		Type:      RecordType,
		Message:   message,
		Channel:   channelName,
	}
	if pid != "" {
		if n, err := strconv.Atoi(pid); err == nil {
			record.EventID = models.IntPtr(n)
		}
	}
	return record
}
