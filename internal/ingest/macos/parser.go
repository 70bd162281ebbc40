package macos

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/ternarybob/logalert/internal/models"
	"github.com/valyala/fastjson"
)

// Timestamp layouts seen in `log show --style json` output
var timestampLayouts = []string{
	"2006-01-02 15:04:05.000000-0700",
	"2006-01-02 15:04:05-0700",
	time.RFC3339Nano,
}

// ParseExport decodes export output, either one JSON array or one object per line.
// Entries that are not objects are skipped. now stamps entries without a usable timestamp.
func ParseExport(data []byte, now time.Time) ([]models.LogRecord, error) {
	var records []models.LogRecord

	var sc fastjson.Scanner
	sc.InitBytes(data)
	for sc.Next() {
		v := sc.Value()
		if v.Type() == fastjson.TypeArray {
			arr, _ := v.Array()
			for _, entry := range arr {
				if record, ok := toRecord(entry, now); ok {
					records = append(records, record)
				}
			}
			continue
		}
		if record, ok := toRecord(v, now); ok {
			records = append(records, record)
		}
	}
	if err := sc.Error(); err != nil {
		return records, fmt.Errorf("failed to parse unified log export: %w", err)
	}

	return records, nil
}

func toRecord(v *fastjson.Value, now time.Time) (models.LogRecord, bool) {
	if v.Type() != fastjson.TypeObject {
		return models.LogRecord{}, false
	}

	subsystem := str(v, "subsystem")
	category := str(v, "category")

	record := models.LogRecord{
		Timestamp: parseTimestamp(str(v, "timestamp"), now),
		Level:     mapMessageType(str(v, "messageType")),
		Source:    source(v),
		Type:      category,
		Message:   message(subsystem, category, str(v, "eventMessage")),
		Channel:   channelName,
	}
	if record.Type == "" {
		record.Type = str(v, "eventType")
	}
	if pid := v.GetInt("processID"); pid != 0 {
		record.EventID = models.IntPtr(pid)
	}

	return record, true
}

// mapMessageType maps unified log message types onto levels; anything unknown is Information
func mapMessageType(messageType string) models.Level {
	switch strings.ToLower(messageType) {
	case "fault":
		return models.LevelCritical
	case "error":
		return models.LevelError
	case "warning":
		return models.LevelWarning
	default:
		return models.LevelInformation
	}
}

func parseTimestamp(value string, now time.Time) time.Time {
	if value != "" {
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, value); err == nil {
				return ts.UTC()
			}
		}
	}
	return now.UTC()
}

func source(v *fastjson.Value) string {
	if process := str(v, "process"); process != "" {
		return process
	}
	if image := str(v, "processImagePath"); image != "" {
		return path.Base(image)
	}
	return "macOS"
}

func message(subsystem, category, text string) string {
	var b strings.Builder
	if subsystem != "" {
		b.WriteString("[" + subsystem + "] ")
	}
	if category != "" && category != subsystem {
		b.WriteString("[" + category + "] ")
	}
	b.WriteString(text)
	return b.String()
}

func str(v *fastjson.Value, key string) string {
	return string(v.GetStringBytes(key))
}
