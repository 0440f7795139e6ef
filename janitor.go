package kick

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/kick/reactive"
)

// Janitor unregisters finished request stores once they are older than the
// configured retention, so the registry does not grow without bound. A zero
// retention or an empty schedule disables it.
type Janitor struct {
	registry  *reactive.Registry
	retention time.Duration
	schedule  string
	logger    Logger
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	started bool
}

// NewJanitor creates a janitor for registry using the telemetry settings.
func NewJanitor(registry *reactive.Registry, telemetry TelemetryConfig, logger Logger) *Janitor {
	if logger == nil {
		logger = NopLogger()
	}
	return &Janitor{
		registry:  registry,
		retention: telemetry.RequestRetention,
		schedule:  telemetry.PruneSchedule,
		logger:    logger,
		now:       time.Now,
	}
}

// Enabled reports whether the janitor has work to schedule.
func (j *Janitor) Enabled() bool {
	return j.retention > 0 && strings.TrimSpace(j.schedule) != ""
}

// Start schedules sweeps until ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return nil
	}
	j.cron = cron.New()
	id, err := j.cron.AddFunc(j.schedule, func() { j.Sweep() })
	if err != nil {
		return fmt.Errorf("invalid prune schedule '%s': %w", j.schedule, err)
	}
	j.entryID = id
	j.cron.Start()
	j.started = true
	j.logger.Debug("Request store janitor started", "schedule", j.schedule, "retention", j.retention)

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.started {
		j.mu.Unlock()
		return
	}
	j.started = false
	c := j.cron
	j.mu.Unlock()
	<-c.Stop().Done()
}

// NextSweep is when the next sweep is scheduled, zero when not running.
func (j *Janitor) NextSweep() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.started {
		return time.Time{}
	}
	return j.cron.Entry(j.entryID).Next
}

// Sweep removes expired request stores now and reports how many it removed.
func (j *Janitor) Sweep() int {
	cutoff := j.now().Add(-j.retention)
	removed := j.registry.Prune(func(s *reactive.Store) bool {
		if !strings.HasPrefix(s.Label(), RequestLabelPrefix) {
			return false
		}
		v, ok := s.Get(reqEndedAt)
		if !ok {
			return false
		}
		ended, ok := v.(time.Time)
		return ok && !ended.After(cutoff)
	})
	if removed > 0 {
		j.logger.Debug("Pruned finished request stores", "count", removed)
	}
	return removed
}
