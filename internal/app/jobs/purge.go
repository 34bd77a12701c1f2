// Package jobs holds the background jobs run on a cron schedule
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Purger deletes finished enrollment records past their retention
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// NewScheduler creates a cron scheduler running on UTC that recovers panicking jobs
func NewScheduler() *cron.Cron {
	return cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DiscardLogger)),
	)
}

// RegisterPurge schedules purger on schedule. Every run is bounded by timeout.
func RegisterPurge(c *cron.Cron, schedule string, purger Purger, timeout time.Duration, lgr zerolog.Logger) (cron.EntryID, error) {
	id, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		RunPurge(ctx, purger, lgr)
	})
	if err != nil {
		return 0, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}

	lgr.Info().Str("schedule", schedule).Msg("Enrollment purge job scheduled")
	return id, nil
}

// RunPurge runs one purge pass and logs its outcome
func RunPurge(ctx context.Context, purger Purger, lgr zerolog.Logger) {
	start := time.Now()
	n, err := purger.PurgeExpired(ctx)
	if err != nil {
		lgr.Error().Err(err).Msg("Enrollment purge failed")
		return
	}
	lgr.Info().Int64("deleted", n).Dur("took", time.Since(start)).Msg("Enrollment purge finished")
}
