package ingestion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
)

// CycleResult summarizes one poll -> persist -> evaluate pass
type CycleResult struct {
	CycleID string
	Read    int
	Stored  int
	Alerts  int
	Err     error
}

// Coordinator owns the polling loop and the source checkpoint. Cycles never overlap.
type Coordinator struct {
	source   interfaces.LogSource
	records  interfaces.LogRecordStorage
	alerts   interfaces.AlertService
	interval time.Duration
	logger   arbor.ILogger

	state atomic.Int32

	mu         sync.Mutex // Protects checkpoint for Checkpoint()
	checkpoint models.Checkpoint

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator creates a coordinator for one source
func NewCoordinator(source interfaces.LogSource, records interfaces.LogRecordStorage, alerts interfaces.AlertService, interval time.Duration, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		source:   source,
		records:  records,
		alerts:   alerts,
		interval: interval,
		logger:   logger,
	}
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

// Checkpoint returns a copy of the current checkpoint
func (c *Coordinator) Checkpoint() models.Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkpoint.Clone()
}

// Start runs the loop in the background until Stop is called or ctx is cancelled
func (c *Coordinator) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.done != nil {
		return fmt.Errorf("ingestion coordinator already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	common.SafeGo(c.logger, "ingestionLoop", func() {
		defer close(done)
		c.Run(runCtx)
	})
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to finish
func (c *Coordinator) Stop() {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run initializes the checkpoint once, then cycles until ctx is cancelled. Cancellation is
// checked at the top of each cycle and while sleeping; it is not an error. A cycle already in
// flight runs to completion.
func (c *Coordinator) Run(ctx context.Context) {
	c.setState(StateStarting)
	c.logger.Info().
		Str("source", c.source.Name()).
		Str("interval", c.interval.String()).
		Msg("Ingestion coordinator starting")

	work := context.WithoutCancel(ctx)
	c.Initialize(work)

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			break
		}

		c.RunCycle(work)

		timer.Reset(c.interval)
		select {
		case <-ctx.Done():
		case <-timer.C:
			continue
		}
		break
	}

	c.setState(StateStopping)
	c.logger.Info().Str("source", c.source.Name()).Msg("Ingestion coordinator stopped")
}

// Initialize seeds the checkpoint from the newest stored record. Failures are logged and
// the source falls back to its default window.
func (c *Coordinator) Initialize(ctx context.Context) {
	c.setState(StateInitializing)

	latest := c.latestRecord(ctx)
	cp := c.initializeBookmarks(ctx, latest)

	c.mu.Lock()
	c.checkpoint = cp
	c.mu.Unlock()
}

func (c *Coordinator) latestRecord(ctx context.Context) (latest *models.LogRecord) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Recovered from panic reading most recent record")
			latest = nil
		}
	}()

	latest, err := c.records.GetMostRecentRecord(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read most recent record, using default window")
		return nil
	}
	return latest
}

func (c *Coordinator) initializeBookmarks(ctx context.Context, latest *models.LogRecord) (cp models.Checkpoint) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Recovered from panic initializing bookmarks")
			cp = models.Checkpoint{}
		}
	}()

	cp = c.source.InitializeBookmarks(ctx, latest)
	if cp == nil {
		cp = models.Checkpoint{}
	}
	return cp
}

// RunCycle performs one poll -> persist -> evaluate pass. Every failure is logged and
// reported in the result; none stops the loop.
func (c *Coordinator) RunCycle(ctx context.Context) (result CycleResult) {
	result.CycleID = uuid.New().String()
	logger := c.logger.WithCorrelationId(result.CycleID)

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("cycle panicked: %v", r)
			logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.GetStackTrace()).
				Msg("Recovered from panic in ingestion cycle")
		}
	}()

	c.setState(StatePolling)

	c.mu.Lock()
	current := c.checkpoint
	c.mu.Unlock()

	batch, next, err := c.source.GetNewRecords(ctx, current)
	if next != nil {
		c.mu.Lock()
		c.checkpoint = next
		c.mu.Unlock()
	}
	if err != nil {
		result.Err = err
		logger.Error().Err(err).Str("source", c.source.Name()).Msg("Failed to read new records")
	}

	result.Read = len(batch)
	if len(batch) == 0 {
		logger.Debug().Str("source", c.source.Name()).Msg("No new records")
		return result
	}

	stored, err := c.records.AppendRecords(ctx, batch)
	if err != nil {
		result.Err = err
		logger.Error().Err(err).Int("count", len(batch)).Msg("Failed to persist records, dropping batch")
		return result
	}
	result.Stored = len(stored)

	c.setState(StateEvaluating)
	alerts, err := c.alerts.ProcessBatch(ctx, stored)
	if err != nil {
		result.Err = err
		logger.Error().Err(err).Int("count", len(stored)).Msg("Failed to evaluate records")
	}
	result.Alerts = alerts

	logger.Info().
		Str("source", c.source.Name()).
		Int("records", result.Stored).
		Int("alerts", result.Alerts).
		Msg("Ingestion cycle complete")

	return result
}
