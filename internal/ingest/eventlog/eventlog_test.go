package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/ternarybob/logalert/internal/models"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func eventXMLText(recordID int64, eventID uint32, level uint8, provider, systemTime string, data ...string) string {
	var dataXML string
	for i, d := range data {
		dataXML += fmt.Sprintf(`<Data Name="param%d">%s</Data>`, i, d)
	}
	return fmt.Sprintf(`<Event xmlns="http://schemas.microsoft.com/win/2004/08/events/event"><System>`+
		`<Provider Name="%s"/><EventID>%d</EventID><Level>%d</Level><Task>0</Task>`+
		`<TimeCreated SystemTime="%s"/><EventRecordID>%d</EventRecordID><Channel>Application</Channel>`+
		`</System><EventData>%s</EventData></Event>`, provider, eventID, level, systemTime, recordID, dataXML)
}

type fakeReader struct {
	mu      sync.Mutex
	events  map[string][]RawEvent
	errs    map[string]error
	queries map[string][]string
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		events:  make(map[string][]RawEvent),
		errs:    make(map[string]error),
		queries: make(map[string][]string),
	}
}

func (f *fakeReader) Query(ctx context.Context, channel, xpath string, max int) ([]RawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries[channel] = append(f.queries[channel], xpath)
	if err := f.errs[channel]; err != nil {
		return nil, err
	}
	events := f.events[channel]
	if len(events) > max {
		events = events[:max]
	}
	return events, nil
}

func newTestSource(reader EventReader, channels ...string) *Source {
	source := New(common.WindowsConfig{Channels: channels, DefaultWindow: "midnight"}, 100, reader, arbor.NewNoOpLogger())
	source.now = func() time.Time { return testNow }
	return source
}

func TestMapLevel(t *testing.T) {
	assert.Equal(t, models.LevelCritical, mapLevel(1))
	assert.Equal(t, models.LevelError, mapLevel(2))
	assert.Equal(t, models.LevelWarning, mapLevel(3))
	assert.Equal(t, models.LevelInformation, mapLevel(4))
	assert.Equal(t, models.LevelInformation, mapLevel(0))
	assert.Equal(t, models.LevelInformation, mapLevel(5))
	assert.Equal(t, models.LevelInformation, mapLevel(200))
}

func TestBuildQuery(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "*[System[EventRecordID>42]]", buildQuery(models.Cursor{Position: 42, LastSeen: ts}))
	assert.Equal(t, "*[System[TimeCreated[@SystemTime>='2024-03-01T00:00:00.000Z']]]", buildQuery(models.Cursor{LastSeen: ts, Inclusive: true}))
	assert.Equal(t, "*[System[TimeCreated[@SystemTime>'2024-03-01T00:00:00.000Z']]]", buildQuery(models.Cursor{LastSeen: ts}))
	assert.Equal(t, "*", buildQuery(models.Cursor{}))
}

func TestToRecord_MessageFallbacks(t *testing.T) {
	formatted := RawEvent{
		XML:     eventXMLText(1, 1000, 2, "Application Error", "2024-03-01T11:00:00.1234567Z", "app.exe"),
		Message: "Faulting application name: app.exe",
		Task:    "Application Crashing Events",
	}
	event, err := toRecord(formatted, "Application", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Faulting application name: app.exe", event.record.Message)
	assert.Equal(t, "Application Crashing Events", event.record.Type)
	assert.Equal(t, models.LevelError, event.record.Level)
	assert.Equal(t, "Application Error", event.record.Source)
	assert.Equal(t, int64(1), event.recordID)
	require.NotNil(t, event.record.EventID)
	assert.Equal(t, 1000, *event.record.EventID)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 123456700, time.UTC), event.record.Timestamp)

	dataOnly := RawEvent{XML: eventXMLText(2, 7036, 4, "Service Control Manager", "2024-03-01T11:00:00Z", "Spooler", " ", "running"), LevelName: "Information"}
	event, err = toRecord(dataOnly, "System", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Spooler | running", event.record.Message)
	assert.Equal(t, "Information", event.record.Type)

	bare := RawEvent{XML: eventXMLText(3, 55, 3, "", "")}
	event, err = toRecord(bare, "Security", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Event ID: 55, Provider: ", event.record.Message)
	assert.Equal(t, "Security", event.record.Source, "channel stands in for a missing provider")
	assert.Equal(t, "Unknown", event.record.Type)
	assert.Equal(t, testNow, event.record.Timestamp, "missing timestamp falls back to now")

	_, err = toRecord(RawEvent{XML: "<not-xml"}, "System", testNow)
	assert.Error(t, err)
}

func TestInitializeBookmarks(t *testing.T) {
	source := newTestSource(newFakeReader(), "Application", "System")

	cp := source.InitializeBookmarks(context.Background(), nil)
	require.Len(t, cp, 2)
	assert.True(t, cp["System"].LastSeen.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), "empty store starts at midnight")
	assert.True(t, cp["System"].Inclusive)

	latest := &models.LogRecord{Timestamp: testNow.Add(-time.Minute)}
	cp = source.InitializeBookmarks(context.Background(), latest)
	assert.True(t, cp["Application"].LastSeen.Equal(latest.Timestamp))
	assert.Zero(t, cp["Application"].Position)
}

func TestGetNewRecords_AdvancesByRecordID(t *testing.T) {
	reader := newFakeReader()
	reader.events["Application"] = []RawEvent{
		{XML: eventXMLText(10, 1, 4, "App", "2024-03-01T11:00:00Z", "a")},
		{XML: eventXMLText(11, 2, 2, "App", "2024-03-01T11:00:01Z", "b")},
	}
	source := newTestSource(reader, "Application")
	ctx := context.Background()

	cp := source.InitializeBookmarks(ctx, nil)
	records, next, err := source.GetNewRecords(ctx, cp)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(11), next["Application"].Position)
	assert.True(t, next["Application"].LastSeen.Equal(time.Date(2024, 3, 1, 11, 0, 1, 0, time.UTC)))

	reader.events["Application"] = nil
	_, _, err = source.GetNewRecords(ctx, next)
	require.NoError(t, err)

	queries := reader.queries["Application"]
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "TimeCreated", "first read is time bound")
	assert.Equal(t, "*[System[EventRecordID>11]]", queries[1], "later reads resume by record id")
}

func TestGetNewRecords_TimeBoundDropsSeenTimestamp(t *testing.T) {
	reader := newFakeReader()
	reader.events["System"] = []RawEvent{
		{XML: eventXMLText(5, 1, 4, "Svc", "2024-03-01T11:00:00.0004Z", "same millisecond as the stored record")},
		{XML: eventXMLText(6, 1, 4, "Svc", "2024-03-01T11:00:00.5Z", "newer")},
	}
	source := newTestSource(reader, "System")
	ctx := context.Background()

	latest := &models.LogRecord{Timestamp: time.Date(2024, 3, 1, 11, 0, 0, 400000, time.UTC)}
	records, next, err := source.GetNewRecords(ctx, source.InitializeBookmarks(ctx, latest))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "newer", records[0].Message)
	assert.Equal(t, int64(6), next["System"].Position)
}

func TestGetNewRecords_ChannelFailureIsolated(t *testing.T) {
	reader := newFakeReader()
	reader.errs["Security"] = errors.New("access denied")
	reader.events["System"] = []RawEvent{{XML: eventXMLText(3, 1, 3, "Disk", "2024-03-01T11:30:00Z", "disk slow")}}
	reader.events["Application"] = []RawEvent{{XML: eventXMLText(8, 1, 4, "App", "2024-03-01T11:10:00Z", "app ok")}}
	source := newTestSource(reader, "Application", "System", "Security")
	ctx := context.Background()

	cp := source.InitializeBookmarks(ctx, nil)
	records, next, err := source.GetNewRecords(ctx, cp)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "app ok", records[0].Message, "merged batch is ordered by timestamp")
	assert.Equal(t, "disk slow", records[1].Message)
	assert.Equal(t, cp["Security"], next["Security"], "failed channel keeps its cursor")
	assert.Equal(t, int64(3), next["System"].Position)
}

func TestGetNewRecords_AllChannelsFail(t *testing.T) {
	reader := newFakeReader()
	reader.errs["System"] = ErrUnsupported
	source := newTestSource(reader, "System")
	ctx := context.Background()

	cp := source.InitializeBookmarks(ctx, nil)
	records, next, err := source.GetNewRecords(ctx, cp)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Empty(t, records)
	assert.Equal(t, cp, next)
}

type panicReader struct{}

func (panicReader) Query(ctx context.Context, channel, xpath string, max int) ([]RawEvent, error) {
	panic("driver crashed")
}

func TestGetNewRecords_ReaderPanicRecovered(t *testing.T) {
	source := newTestSource(panicReader{}, "System")
	ctx := context.Background()

	cp := source.InitializeBookmarks(ctx, nil)
	_, next, err := source.GetNewRecords(ctx, cp)
	assert.Error(t, err)
	assert.Equal(t, cp, next)
}

func TestProviderName(t *testing.T) {
	assert.Equal(t, "Disk", ProviderName(eventXMLText(1, 1, 1, "Disk", "2024-03-01T00:00:00Z")))
	assert.Equal(t, "", ProviderName("garbage"))
}
