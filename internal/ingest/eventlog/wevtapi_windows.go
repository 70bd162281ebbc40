//go:build windows

package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/ternarybob/arbor"
	"golang.org/x/sys/windows"
)

const (
	evtQueryChannelPath      = 0x1
	evtQueryForwardDirection = 0x100
	evtRenderEventXML        = 1

	evtFormatMessageEvent = 1
	evtFormatMessageLevel = 2
	evtFormatMessageTask  = 3

	nextTimeoutMillis = 2000
	nextBatchSize     = 64
)

var (
	errNoMoreItems        = syscall.Errno(259)
	errInsufficientBuffer = syscall.Errno(122)
	errTimeout            = syscall.Errno(1460)
)

var (
	wevtapi                      = windows.NewLazySystemDLL("wevtapi.dll")
	procEvtQuery                 = wevtapi.NewProc("EvtQuery")
	procEvtNext                  = wevtapi.NewProc("EvtNext")
	procEvtRender                = wevtapi.NewProc("EvtRender")
	procEvtClose                 = wevtapi.NewProc("EvtClose")
	procEvtFormatMessage         = wevtapi.NewProc("EvtFormatMessage")
	procEvtOpenPublisherMetadata = wevtapi.NewProc("EvtOpenPublisherMetadata")
)

// systemReader queries the local event log through wevtapi.dll
type systemReader struct {
	logger arbor.ILogger

	mu         sync.Mutex
	publishers map[string]windows.Handle // 0 when the publisher has no metadata
}

func newSystemReader(logger arbor.ILogger) EventReader {
	return &systemReader{
		logger:     logger,
		publishers: make(map[string]windows.Handle),
	}
}

func (r *systemReader) Query(ctx context.Context, channel, xpath string, max int) ([]RawEvent, error) {
	if err := wevtapi.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	query, err := evtQuery(channel, xpath, evtQueryChannelPath|evtQueryForwardDirection)
	if err != nil {
		return nil, fmt.Errorf("EvtQuery %s: %w", channel, err)
	}
	defer evtClose(query)

	events := make([]RawEvent, 0, max)
	handles := make([]windows.Handle, nextBatchSize)

	for len(events) < max {
		want := min(nextBatchSize, max-len(events))
		returned, err := evtNext(query, handles[:want])
		if err != nil {
			if errors.Is(err, errNoMoreItems) || errors.Is(err, errTimeout) {
				break
			}
			return events, fmt.Errorf("EvtNext %s: %w", channel, err)
		}

		for i := uint32(0); i < returned; i++ {
			raw, err := r.render(handles[i])
			evtClose(handles[i])
			if err != nil {
				r.logger.Debug().Err(err).Str("channel", channel).Msg("Failed to render event")
				continue
			}
			events = append(events, raw)
		}

		if returned == 0 {
			break
		}
	}

	return events, nil
}

func (r *systemReader) render(event windows.Handle) (RawEvent, error) {
	xmlText, err := renderEventXML(event)
	if err != nil {
		return RawEvent{}, err
	}

	raw := RawEvent{XML: xmlText}
	if publisher := r.publisher(ProviderName(xmlText)); publisher != 0 {
		raw.Message = formatMessage(publisher, event, evtFormatMessageEvent)
		raw.Task = formatMessage(publisher, event, evtFormatMessageTask)
		raw.LevelName = formatMessage(publisher, event, evtFormatMessageLevel)
	}
	return raw, nil
}

// publisher returns cached publisher metadata, opening it on first use
func (r *systemReader) publisher(provider string) windows.Handle {
	if provider == "" {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.publishers[provider]; ok {
		return h
	}

	providerPtr, err := windows.UTF16PtrFromString(provider)
	if err != nil {
		r.publishers[provider] = 0
		return 0
	}
	h, _, _ := procEvtOpenPublisherMetadata.Call(0, uintptr(unsafe.Pointer(providerPtr)), 0, 0, 0)
	r.publishers[provider] = windows.Handle(h)
	return windows.Handle(h)
}

// Close releases all cached publisher metadata handles
func (r *systemReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for provider, h := range r.publishers {
		evtClose(h)
		delete(r.publishers, provider)
	}
	return nil
}

func evtQuery(channel, query string, flags uint32) (windows.Handle, error) {
	channelPtr, err := windows.UTF16PtrFromString(channel)
	if err != nil {
		return 0, err
	}
	queryPtr, err := windows.UTF16PtrFromString(query)
	if err != nil {
		return 0, err
	}

	r1, _, callErr := procEvtQuery.Call(
		0, // Local session
		uintptr(unsafe.Pointer(channelPtr)),
		uintptr(unsafe.Pointer(queryPtr)),
		uintptr(flags),
	)
	if r1 == 0 {
		return 0, callErr
	}
	return windows.Handle(r1), nil
}

func evtNext(query windows.Handle, events []windows.Handle) (uint32, error) {
	var returned uint32

	r1, _, err := procEvtNext.Call(
		uintptr(query),
		uintptr(len(events)),
		uintptr(unsafe.Pointer(&events[0])),
		uintptr(nextTimeoutMillis),
		0,
		uintptr(unsafe.Pointer(&returned)),
	)
	if r1 == 0 {
		return 0, err
	}
	return returned, nil
}

func evtClose(handle windows.Handle) {
	if handle != 0 {
		procEvtClose.Call(uintptr(handle))
	}
}

func renderEventXML(event windows.Handle) (string, error) {
	var used, propertyCount uint32

	// First call sizes the buffer (in bytes)
	procEvtRender.Call(
		0,
		uintptr(event),
		uintptr(evtRenderEventXML),
		0,
		0,
		uintptr(unsafe.Pointer(&used)),
		uintptr(unsafe.Pointer(&propertyCount)),
	)
	if used == 0 {
		return "", fmt.Errorf("EvtRender returned no size")
	}

	buffer := make([]uint16, used/2+1)
	r1, _, err := procEvtRender.Call(
		0,
		uintptr(event),
		uintptr(evtRenderEventXML),
		uintptr(used),
		uintptr(unsafe.Pointer(&buffer[0])),
		uintptr(unsafe.Pointer(&used)),
		uintptr(unsafe.Pointer(&propertyCount)),
	)
	if r1 == 0 {
		return "", fmt.Errorf("EvtRender: %w", err)
	}
	return windows.UTF16ToString(buffer), nil
}

// formatMessage returns the publisher string for flag, or "" when the publisher has none
func formatMessage(publisher, event windows.Handle, flag uint32) string {
	var used uint32

	// Buffer size is in characters
	r1, _, err := procEvtFormatMessage.Call(
		uintptr(publisher), uintptr(event), 0, 0, 0, uintptr(flag),
		0, 0, uintptr(unsafe.Pointer(&used)),
	)
	if (r1 == 0 && !errors.Is(err, errInsufficientBuffer)) || used == 0 {
		return ""
	}

	buffer := make([]uint16, used)
	r1, _, _ = procEvtFormatMessage.Call(
		uintptr(publisher), uintptr(event), 0, 0, 0, uintptr(flag),
		uintptr(used), uintptr(unsafe.Pointer(&buffer[0])), uintptr(unsafe.Pointer(&used)),
	)
	if r1 == 0 {
		return ""
	}
	return windows.UTF16ToString(buffer)
}
