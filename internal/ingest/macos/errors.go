package macos

import (
	"errors"
	"fmt"
)

// ErrExportFailed is wrapped by ExportError when the export command exits non-zero
var ErrExportFailed = errors.New("unified log export failed")

// ExportError carries the exit status and stderr of a failed export
type ExportError struct {
	ExitCode int
	Stderr   string
}

func (e *ExportError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%v: exit status %d", ErrExportFailed, e.ExitCode)
	}
	return fmt.Sprintf("%v: exit status %d: %s", ErrExportFailed, e.ExitCode, e.Stderr)
}

func (e *ExportError) Unwrap() error {
	return ErrExportFailed
}
