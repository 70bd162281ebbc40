package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
)

// MockAlertRuleStorage is a mock implementation of AlertRuleStorage
type MockAlertRuleStorage struct {
	mock.Mock
}

func (m *MockAlertRuleStorage) GetActiveRules(ctx context.Context) ([]models.AlertRule, error) {
	args := m.Called(ctx)
	if rules, ok := args.Get(0).([]models.AlertRule); ok {
		return rules, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAlertRuleStorage) GetRule(ctx context.Context, id uint64) (*models.AlertRule, error) {
	args := m.Called(ctx, id)
	if rule, ok := args.Get(0).(*models.AlertRule); ok {
		return rule, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAlertRuleStorage) GetRuleByName(ctx context.Context, name string) (*models.AlertRule, error) {
	args := m.Called(ctx, name)
	if rule, ok := args.Get(0).(*models.AlertRule); ok {
		return rule, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAlertRuleStorage) ListRules(ctx context.Context) ([]models.AlertRule, error) {
	args := m.Called(ctx)
	if rules, ok := args.Get(0).([]models.AlertRule); ok {
		return rules, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAlertRuleStorage) SaveRule(ctx context.Context, rule *models.AlertRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockAlertRuleStorage) DeleteRule(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAlertStorage is a mock implementation of AlertStorage
type MockAlertStorage struct {
	mock.Mock
}

func (m *MockAlertStorage) AppendAlerts(ctx context.Context, alerts []models.Alert) (int, error) {
	args := m.Called(ctx, alerts)
	return args.Int(0), args.Error(1)
}

func (m *MockAlertStorage) ListAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	args := m.Called(ctx, limit)
	if alerts, ok := args.Get(0).([]models.Alert); ok {
		return alerts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAlertStorage) GetAlertsByRule(ctx context.Context, ruleID uint64) ([]models.Alert, error) {
	args := m.Called(ctx, ruleID)
	if alerts, ok := args.Get(0).([]models.Alert); ok {
		return alerts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAlertStorage) DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

var _ interfaces.AlertService = (*Service)(nil)

func newTestService(rules *MockAlertRuleStorage, alerts *MockAlertStorage) *Service {
	service := NewService(rules, alerts, arbor.NewNoOpLogger())
	service.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return service
}

func dbRecord() models.LogRecord {
	return models.LogRecord{
		ID:        7,
		Timestamp: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
		Level:     models.LevelError,
		Source:    "Svc",
		Type:      "Application",
		Message:   "Database connection failed",
	}
}

func TestMatches_EmptyRuleNeverMatches(t *testing.T) {
	records := []models.LogRecord{
		dbRecord(),
		{},
		{Message: " ", Source: " ", Type: " ", Level: models.LevelInformation},
	}
	rule := &models.AlertRule{Name: "empty", IsActive: true, MessageContains: "  ", SourceEquals: ""}

	for _, record := range records {
		assert.False(t, Matches(rule, &record))
	}
}

func TestMatches_Conditions(t *testing.T) {
	record := dbRecord()

	tests := []struct {
		name string
		rule models.AlertRule
		want bool
	}{
		{"message contains case insensitive", models.AlertRule{MessageContains: "CONNECTION failed"}, true},
		{"message contains miss", models.AlertRule{MessageContains: "disk full"}, false},
		{"message equals", models.AlertRule{MessageEquals: "database connection FAILED"}, true},
		{"message equals partial", models.AlertRule{MessageEquals: "Database connection"}, false},
		{"source contains", models.AlertRule{SourceContains: "sv"}, true},
		{"source equals", models.AlertRule{SourceEquals: "SVC"}, true},
		{"type contains", models.AlertRule{TypeContains: "applic"}, true},
		{"type equals miss", models.AlertRule{TypeEquals: "System"}, false},
		{"level equals", models.AlertRule{Level: models.LevelPtr(models.LevelError)}, true},
		{"level differs", models.AlertRule{Level: models.LevelPtr(models.LevelWarning)}, false},
		{"any condition suffices", models.AlertRule{MessageContains: "nope", Level: models.LevelPtr(models.LevelError)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(&tt.rule, &record))
		})
	}
}

func TestMatches_WarningLevelRuleOnErrorRecord(t *testing.T) {
	record := dbRecord()

	levelOnly := &models.AlertRule{Level: models.LevelPtr(models.LevelWarning)}
	assert.False(t, Matches(levelOnly, &record))

	withSource := &models.AlertRule{Level: models.LevelPtr(models.LevelWarning), SourceEquals: "svc"}
	assert.True(t, Matches(withSource, &record), "other conditions are evaluated independently")
}

func TestEvaluate_OneAlertPerMatch(t *testing.T) {
	service := newTestService(&MockAlertRuleStorage{}, &MockAlertStorage{})

	rules := []models.AlertRule{
		{ID: 1, Name: "db", MessageContains: "connection", IsActive: true},
		{ID: 2, Name: "svc", SourceEquals: "svc", IsActive: true},
		{ID: 3, Name: "errors", Level: models.LevelPtr(models.LevelError), IsActive: true},
		{ID: 4, Name: "inactive", SourceEquals: "svc", IsActive: false},
	}
	second := dbRecord()
	second.ID = 8
	second.Message = "Database connection restored"
	second.Level = models.LevelInformation

	alerts := service.Evaluate(rules, []models.LogRecord{dbRecord(), second})
	require.Len(t, alerts, 5)

	assert.Equal(t, uint64(1), alerts[0].AlertRuleID)
	assert.Equal(t, uint64(7), alerts[0].LogID)
	assert.Equal(t, uint64(8), alerts[3].LogID)
	assert.Equal(t, "Alert: db", alerts[0].Title)
	assert.Equal(t, "db", alerts[0].Rule.Name)
	assert.Equal(t, "Database connection failed", alerts[0].Log.Message)
	assert.Equal(t, time.UTC, alerts[0].CreatedAt.Location())
}

func TestEvaluate_MessagePreview(t *testing.T) {
	service := newTestService(&MockAlertRuleStorage{}, &MockAlertStorage{})
	rules := []models.AlertRule{{ID: 1, Name: "all", SourceEquals: "Svc", IsActive: true}}

	short := dbRecord()
	alerts := service.Evaluate(rules, []models.LogRecord{short})
	require.Len(t, alerts, 1)
	assert.Equal(t, "Log message: Database connection failed...", alerts[0].Message)

	long := dbRecord()
	long.Message = strings.Repeat("é", 250)
	alerts = service.Evaluate(rules, []models.LogRecord{long})
	require.Len(t, alerts, 1)
	assert.Equal(t, "Log message: "+strings.Repeat("é", 200)+"...", alerts[0].Message)
}

func TestProcessBatch_ThreeRulesSingleBulkCall(t *testing.T) {
	ruleStorage := &MockAlertRuleStorage{}
	alertStorage := &MockAlertStorage{}
	service := newTestService(ruleStorage, alertStorage)
	ctx := context.Background()

	ruleStorage.On("GetActiveRules", ctx).Return([]models.AlertRule{
		{ID: 1, Name: "a", MessageContains: "database", IsActive: true},
		{ID: 2, Name: "b", SourceEquals: "Svc", IsActive: true},
		{ID: 3, Name: "c", Level: models.LevelPtr(models.LevelError), IsActive: true},
	}, nil)
	alertStorage.On("AppendAlerts", ctx, mock.MatchedBy(func(alerts []models.Alert) bool {
		return len(alerts) == 3
	})).Return(3, nil).Once()

	stored, err := service.ProcessBatch(ctx, []models.LogRecord{dbRecord()})
	require.NoError(t, err)
	assert.Equal(t, 3, stored)

	alertStorage.AssertNumberOfCalls(t, "AppendAlerts", 1)
	ruleStorage.AssertExpectations(t)
	alertStorage.AssertExpectations(t)
}

func TestProcessBatch_ConnectionFailedScenario(t *testing.T) {
	ruleStorage := &MockAlertRuleStorage{}
	alertStorage := &MockAlertStorage{}
	service := newTestService(ruleStorage, alertStorage)
	ctx := context.Background()

	ruleStorage.On("GetActiveRules", ctx).Return([]models.AlertRule{
		{ID: 9, Name: "DB Down", MessageContains: "connection failed", IsActive: true},
	}, nil)

	var captured []models.Alert
	alertStorage.On("AppendAlerts", ctx, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).([]models.Alert)
	}).Return(1, nil)

	stored, err := service.ProcessBatch(ctx, []models.LogRecord{dbRecord()})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	require.Len(t, captured, 1)
	assert.Equal(t, "Alert: DB Down", captured[0].Title)
	assert.Equal(t, uint64(9), captured[0].AlertRuleID)
}

func TestProcessBatch_NoMatchesSkipsAppend(t *testing.T) {
	ruleStorage := &MockAlertRuleStorage{}
	alertStorage := &MockAlertStorage{}
	service := newTestService(ruleStorage, alertStorage)
	ctx := context.Background()

	ruleStorage.On("GetActiveRules", ctx).Return([]models.AlertRule{
		{ID: 1, Name: "disk", MessageContains: "disk full", IsActive: true},
	}, nil)

	stored, err := service.ProcessBatch(ctx, []models.LogRecord{dbRecord()})
	require.NoError(t, err)
	assert.Zero(t, stored)
	alertStorage.AssertNotCalled(t, "AppendAlerts", mock.Anything, mock.Anything)
}

func TestProcessBatch_EmptyBatch(t *testing.T) {
	ruleStorage := &MockAlertRuleStorage{}
	service := newTestService(ruleStorage, &MockAlertStorage{})

	stored, err := service.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stored)
	ruleStorage.AssertNotCalled(t, "GetActiveRules", mock.Anything)
}

func TestProcessBatch_StorageErrors(t *testing.T) {
	ctx := context.Background()

	ruleStorage := &MockAlertRuleStorage{}
	ruleStorage.On("GetActiveRules", ctx).Return(nil, errors.New("db closed"))
	_, err := newTestService(ruleStorage, &MockAlertStorage{}).ProcessBatch(ctx, []models.LogRecord{dbRecord()})
	assert.Error(t, err)

	ruleStorage = &MockAlertRuleStorage{}
	alertStorage := &MockAlertStorage{}
	ruleStorage.On("GetActiveRules", ctx).Return([]models.AlertRule{{ID: 1, Name: "x", SourceEquals: "Svc", IsActive: true}}, nil)
	alertStorage.On("AppendAlerts", ctx, mock.Anything).Return(0, errors.New("txn too big"))
	_, err = newTestService(ruleStorage, alertStorage).ProcessBatch(ctx, []models.LogRecord{dbRecord()})
	assert.Error(t, err)
}
