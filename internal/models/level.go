package models

import (
	"fmt"
	"strings"
)

// Level is the normalized severity shared by every log source
type Level int

// Level constants, ordered by severity
const (
	LevelInformation Level = iota
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = map[Level]string{
	LevelInformation: "Information",
	LevelWarning:     "Warning",
	LevelError:       "Error",
	LevelCritical:    "Critical",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts the level name case-insensitively, plus the "info" and "warn" short forms
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "information", "info":
		return LevelInformation, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "critical":
		return LevelCritical, nil
	default:
		return LevelInformation, fmt.Errorf("unknown level %q", s)
	}
}

// MarshalText encodes the level by name so rule files and JSON stay readable
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
