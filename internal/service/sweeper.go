package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper runs the hold-expiry reclaim on a fixed period. The engine's
// confirm path re-checks hold expiry itself, so the loop is purely
// housekeeping and any interval is safe.
type Sweeper struct {
	reservations *ReservationService
	interval     time.Duration
	logger       *zerolog.Logger
}

func NewSweeper(reservations *ReservationService, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		reservations: reservations,
		interval:     interval,
		logger:       logger,
	}
}

// Run loops until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("hold-expiry sweeper started")
	defer s.logger.Info().Msg("hold-expiry sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.reservations.SweepExpiredHolds(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}
