//go:build !windows

package eventlog

import (
	"context"

	"github.com/ternarybob/arbor"
)

// unsupportedReader stands in for wevtapi on other platforms
type unsupportedReader struct{}

func newSystemReader(logger arbor.ILogger) EventReader {
	return unsupportedReader{}
}

func (unsupportedReader) Query(ctx context.Context, channel, xpath string, max int) ([]RawEvent, error) {
	return nil, ErrUnsupported
}
