package models

import (
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"Information", LevelInformation},
		{"info", LevelInformation},
		{"WARNING", LevelWarning},
		{"warn", LevelWarning},
		{"error", LevelError},
		{" Critical ", LevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "Critical", LevelCritical.String())
	assert.Equal(t, "Level(9)", Level(9).String())
}

func TestAlertRuleLevelFromTOML(t *testing.T) {
	var rule AlertRule
	err := toml.Unmarshal([]byte("name = \"disk\"\nlevel = \"Warning\"\nis_active = true\n"), &rule)
	require.NoError(t, err)

	require.NotNil(t, rule.Level)
	assert.Equal(t, LevelWarning, *rule.Level)
	assert.True(t, rule.IsActive)
	assert.True(t, rule.HasConditions())
}

func TestAlertRuleHasConditions(t *testing.T) {
	assert.False(t, (&AlertRule{Name: "empty", MessageContains: "   "}).HasConditions())
	assert.True(t, (&AlertRule{Name: "src", SourceEquals: "Svc"}).HasConditions())
}
