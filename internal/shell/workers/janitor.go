package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/artpar/storefront/internal/shell/store"
)

// JanitorConfig configures the cleanup worker.
type JanitorConfig struct {
	// Interval between cleanup cycles.
	Interval time.Duration
	// CartTTL is how long an untouched cart slot is kept. Zero keeps carts forever.
	CartTTL time.Duration
	// CycleTimeout bounds a single cleanup cycle.
	CycleTimeout time.Duration
}

// DefaultJanitorConfig returns default configuration.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval:     10 * time.Minute,
		CartTTL:      30 * 24 * time.Hour,
		CycleTimeout: time.Minute,
	}
}

// CycleResult reports what one cleanup cycle removed.
type CycleResult struct {
	Sessions  int64
	CartSlots int64
}

// Janitor periodically removes expired sessions and abandoned cart slots.
type Janitor struct {
	store  store.Store
	config JanitorConfig
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a new cleanup worker.
func NewJanitor(s store.Store, config JanitorConfig, logger *slog.Logger) *Janitor {
	defaults := DefaultJanitorConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.CycleTimeout <= 0 {
		config.CycleTimeout = defaults.CycleTimeout
	}
	if config.CartTTL < 0 {
		config.CartTTL = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		store:  s,
		config: config,
		logger: logger.With("component", "janitor"),
		now:    time.Now,
	}
}

// Start begins the janitor background goroutine.
func (j *Janitor) Start() {
	j.ctx, j.cancel = context.WithCancel(context.Background())
	j.wg.Add(1)
	go j.run()
	j.logger.Info("janitor started", "interval", j.config.Interval, "cart_ttl", j.config.CartTTL)
}

// Stop gracefully stops the janitor. Stop without Start is a no-op.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
	j.logger.Info("janitor stopped")
}

func (j *Janitor) run() {
	defer j.wg.Done()

	j.runCycle()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.runCycle()
		}
	}
}

func (j *Janitor) runCycle() {
	ctx, cancel := context.WithTimeout(j.ctx, j.config.CycleTimeout)
	defer cancel()

	result := j.RunOnce(ctx)
	if result.Sessions > 0 || result.CartSlots > 0 {
		j.logger.Info("cleanup cycle finished",
			"expired_sessions", result.Sessions, "stale_cart_slots", result.CartSlots)
	}
}

// RunOnce performs one cleanup cycle. Failures are logged and the other
// cleanup still runs.
func (j *Janitor) RunOnce(ctx context.Context) CycleResult {
	var result CycleResult
	now := j.now()

	n, err := j.store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		j.logger.Error("failed to delete expired sessions", "error", err)
	} else {
		result.Sessions = n
	}

	if j.config.CartTTL == 0 {
		return result
	}

	n, err = j.store.DeleteCartSlotsBefore(ctx, now.Add(-j.config.CartTTL))
	if err != nil {
		j.logger.Error("failed to delete stale cart slots", "error", err)
	} else {
		result.CartSlots = n
	}

	return result
}
