package monitoring

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/accounts-api/internal/metrics"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthChecker periodically pings the database and keeps the result in a
// flag that request handlers read without touching the database.
type HealthChecker struct {
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	cron     *cron.Cron
	healthy  atomic.Bool
}

// NewHealthChecker creates a new HealthChecker. The flag starts down until
// the first check completes.
func NewHealthChecker(db Pinger, interval, timeout time.Duration) *HealthChecker {
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &HealthChecker{
		db:       db,
		interval: interval,
		timeout:  timeout,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start runs one check synchronously and then schedules the rest.
func (hc *HealthChecker) Start() error {
	log.Info().Dur("interval", hc.interval).Msg("Starting database health checker...")

	// Run once immediately on start
	hc.check()

	if _, err := hc.cron.AddFunc(fmt.Sprintf("@every %s", hc.interval), hc.check); err != nil {
		return fmt.Errorf("schedule health check: %w", err)
	}
	hc.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running check to finish.
func (hc *HealthChecker) Stop() {
	<-hc.cron.Stop().Done()
	log.Info().Msg("Stopped database health checker.")
}

// Healthy reports the result of the most recent check.
func (hc *HealthChecker) Healthy() bool {
	return hc.healthy.Load()
}

func (hc *HealthChecker) check() {
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(ctx)
	ok := err == nil
	metrics.ObserveDBPing(time.Since(start), ok)

	if prev := hc.healthy.Swap(ok); prev != ok {
		if ok {
			log.Info().Msg("Database connection is up")
		} else {
			log.Error().Err(err).Msg("Database connection is down")
		}
	}
}
