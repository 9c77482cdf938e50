package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants a trigger fans out to
type TenantProvider interface {
	GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// TriggerConfig holds configuration for the daily trigger
type TriggerConfig struct {
	Hour   int
	Minute int
	// CheckInterval is how often the clock is checked
	CheckInterval time.Duration
}

// DefaultTriggerConfig returns the default trigger configuration
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Hour:          1,
		Minute:        0,
		CheckInterval: time.Minute,
	}
}

// ParseDailySchedule reads the minute and hour fields of a cron expression
// such as "30 1 * * *". Other fields are ignored.
func ParseDailySchedule(expr string) (hour, minute int, err error) {
	def := DefaultTriggerConfig()
	hour, minute = def.Hour, def.Minute

	parts := strings.Fields(expr)
	if len(parts) < 2 {
		return hour, minute, nil
	}
	if parts[0] != "*" {
		if minute, err = strconv.Atoi(parts[0]); err != nil {
			return def.Hour, def.Minute, fmt.Errorf("%w: minute %q", ErrInvalidConfig, parts[0])
		}
	}
	if parts[1] != "*" {
		if hour, err = strconv.Atoi(parts[1]); err != nil {
			return def.Hour, def.Minute, fmt.Errorf("%w: hour %q", ErrInvalidConfig, parts[1])
		}
	}
	if minute < 0 || minute > 59 {
		return def.Hour, def.Minute, fmt.Errorf("%w: minute must be 0-59, got %d", ErrInvalidConfig, minute)
	}
	if hour < 0 || hour > 23 {
		return def.Hour, def.Minute, fmt.Errorf("%w: hour must be 0-23, got %d", ErrInvalidConfig, hour)
	}
	return hour, minute, nil
}

// Trigger submits a republish job per tenant once a day
type Trigger struct {
	config    TriggerConfig
	scheduler *Scheduler
	tenants   TenantProvider
	logger    *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewTrigger creates a new daily trigger
func NewTrigger(config TriggerConfig, scheduler *Scheduler, tenants TenantProvider, logger *zap.Logger) *Trigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{config: config, scheduler: scheduler, tenants: tenants, logger: logger}
}

// Start starts the trigger loop
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Republish trigger started",
		zap.Int("hour", t.config.Hour),
		zap.Int("minute", t.config.Minute),
		zap.Duration("check_interval", t.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger loop
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Trigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if t.due(now) {
				t.TriggerNow(ctx)
			}
		}
	}
}

// due reports whether now is the configured time and the trigger has not
// fired yet today.
func (t *Trigger) due(now time.Time) bool {
	if now.Hour() != t.config.Hour || now.Minute() != t.config.Minute {
		return false
	}
	date := now.Format("2006-01-02")
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastRunDate == date {
		return false
	}
	t.lastRunDate = date
	return true
}

// TriggerNow submits a republish job for every tenant immediately
func (t *Trigger) TriggerNow(ctx context.Context) {
	tenantIDs, err := t.tenants.GetAllActiveTenantIDs(ctx)
	if err != nil {
		t.logger.Error("Failed to list tenants for republish", zap.Error(err))
		return
	}
	if err := t.scheduler.ScheduleRepublish(tenantIDs); err != nil {
		t.logger.Error("Failed to schedule republish jobs", zap.Error(err))
		return
	}
	t.logger.Info("Republish jobs scheduled", zap.Int("tenant_count", len(tenantIDs)))
}
