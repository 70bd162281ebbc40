// Package ingest holds what the log sources share: the backend registry, keyword level
// inference, default window resolution and batch ordering.
package ingest

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/ternarybob/logalert/internal/interfaces"
)

// ErrUnknownBackend is returned when the configured backend has no registered factory
var ErrUnknownBackend = errors.New("unknown ingest backend")

// Backend names
const (
	BackendAuto    = "auto"
	BackendWindows = "windows"
	BackendSyslog  = "syslog"
	BackendMacOS   = "macos"
)

// Factory builds a log source from config
type Factory func(config *common.Config, logger arbor.ILogger) (interfaces.LogSource, error)

// Registry maps backend names to factories. Exactly one backend is built per process.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = factory
}

// Names returns the registered backend names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create resolves "auto" and builds the selected source
func (r *Registry) Create(name string, config *common.Config, logger arbor.ILogger) (interfaces.LogSource, error) {
	resolved := ResolveBackend(name, runtime.GOOS)

	r.mu.RLock()
	factory, ok := r.factories[resolved]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownBackend, name, strings.Join(r.Names(), ", "))
	}

	source, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s source: %w", resolved, err)
	}
	return source, nil
}

// ResolveBackend maps "auto" (or empty) to the backend native to goos
func ResolveBackend(name, goos string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name != "" && name != BackendAuto {
		return name
	}

	switch goos {
	case "windows":
		return BackendWindows
	case "darwin":
		return BackendMacOS
	default:
		return BackendSyslog
	}
}
