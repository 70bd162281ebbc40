package eventlog

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/logalert/internal/models"
)

// Rendered event XML, the subset we read
type eventXML struct {
	XMLName   xml.Name     `xml:"Event"`
	System    systemXML    `xml:"System"`
	EventData eventDataXML `xml:"EventData"`
}

type systemXML struct {
	Provider      providerXML    `xml:"Provider"`
	EventID       uint32         `xml:"EventID"`
	Level         uint8          `xml:"Level"`
	Task          uint16         `xml:"Task"`
	TimeCreated   timeCreatedXML `xml:"TimeCreated"`
	EventRecordID int64          `xml:"EventRecordID"`
	Channel       string         `xml:"Channel"`
	Computer      string         `xml:"Computer"`
}

type providerXML struct {
	Name string `xml:"Name,attr"`
}

type timeCreatedXML struct {
	SystemTime string `xml:"SystemTime,attr"`
}

type eventDataXML struct {
	Data []dataXML `xml:"Data"`
}

type dataXML struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:",chardata"`
}

// RawEvent is one event as returned by an EventReader
type RawEvent struct {
	XML       string // EvtRender XML
	Message   string // Publisher formatted description, empty when unavailable
	Task      string // Task display name, empty when unavailable
	LevelName string // Level display name, empty when unavailable
}

// parsedEvent is a RawEvent converted to a record, keeping the resume cursor
type parsedEvent struct {
	record   models.LogRecord
	recordID int64
}

func parseEventXML(data string) (*eventXML, error) {
	var event eventXML
	if err := xml.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to parse event xml: %w", err)
	}
	return &event, nil
}

// ProviderName extracts the provider name from rendered event XML
func ProviderName(data string) string {
	event, err := parseEventXML(data)
	if err != nil {
		return ""
	}
	return event.System.Provider.Name
}

// mapLevel maps the Windows event level onto the normalized levels. 0 (LogAlways),
// 4 (Informational), 5 (Verbose) and anything unknown are Information.
func mapLevel(level uint8) models.Level {
	switch level {
	case 1:
		return models.LevelCritical
	case 2:
		return models.LevelError
	case 3:
		return models.LevelWarning
	default:
		return models.LevelInformation
	}
}

func toRecord(raw RawEvent, channel string, now time.Time) (parsedEvent, error) {
	event, err := parseEventXML(raw.XML)
	if err != nil {
		return parsedEvent{}, err
	}
	sys := event.System

	ts := now.UTC()
	if sys.TimeCreated.SystemTime != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, sys.TimeCreated.SystemTime); err == nil {
			ts = parsed.UTC()
		}
	}

	source := sys.Provider.Name
	if source == "" {
		source = channel
	}

	recordType := raw.Task
	if recordType == "" {
		recordType = raw.LevelName
	}
	if recordType == "" {
		recordType = "Unknown"
	}

	return parsedEvent{
		record: models.LogRecord{
			Timestamp: ts,
			EventID:   models.IntPtr(int(sys.EventID)),
			Level:     mapLevel(sys.Level),
			Source:    source,
			Type:      recordType,
			Message:   eventMessage(raw.Message, event),
			Channel:   channel,
		},
		recordID: sys.EventRecordID,
	}, nil
}

// eventMessage prefers the publisher description, then the event data values, then a synthetic line
func eventMessage(formatted string, event *eventXML) string {
	if msg := strings.TrimSpace(formatted); msg != "" {
		return msg
	}

	var values []string
	for _, d := range event.EventData.Data {
		if v := strings.TrimSpace(d.Value); v != "" {
			values = append(values, v)
		}
	}
	if len(values) > 0 {
		return strings.Join(values, " | ")
	}

	return fmt.Sprintf("Event ID: %d, Provider: %s", event.System.EventID, event.System.Provider.Name)
}

// buildQuery returns the XPath for a cursor: by record id once one is known, otherwise by time
func buildQuery(cursor models.Cursor) string {
	if cursor.Position > 0 {
		return fmt.Sprintf("*[System[EventRecordID>%d]]", cursor.Position)
	}
	if cursor.LastSeen.IsZero() {
		return "*"
	}

	op := ">"
	if cursor.Inclusive {
		op = ">="
	}
	return fmt.Sprintf("*[System[TimeCreated[@SystemTime%s'%s']]]", op, cursor.LastSeen.UTC().Format("2006-01-02T15:04:05.000Z"))
}
