package leaderboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Refresher periodically rebuilds the cached leaderboard so interactive reads
// rarely pay the Postgres aggregate.
type Refresher struct {
	svc      *Service
	logger   zerolog.Logger
	interval time.Duration
}

func NewRefresher(svc *Service, interval time.Duration, logger zerolog.Logger) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{
		svc:      svc,
		logger:   logger.With().Str("component", "leaderboard_refresher").Logger(),
		interval: interval,
	}
}

// Run blocks until the context is canceled, refreshing on each tick.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.svc.Refresh(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("leaderboard refresh failed")
			}
		}
	}
}
