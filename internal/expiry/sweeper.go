// Package expiry periodically moves permits whose validity window has ended
// from VALID to EXPIRED.
package expiry

import (
	"context"
	"log"
	"time"

	"smart-street-backend/config"
	"smart-street-backend/internal/metrics"
)

// PermitExpirer is the slice of the store the sweeper needs.
type PermitExpirer interface {
	ExpirePermits(ctx context.Context, now time.Time) (int64, error)
}

// Service runs the sweep loop.
type Service struct {
	cfg     config.ExpiryConfig
	store   PermitExpirer
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a sweeper. m may be nil.
func NewService(cfg config.ExpiryConfig, s PermitExpirer, m *metrics.Metrics) *Service {
	return &Service{
		cfg:     cfg,
		store:   s,
		metrics: m,
		now:     time.Now,
	}
}

// Run sweeps once immediately and then every configured interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Permit expiry sweeper is disabled. Not starting.")
		return
	}
	log.Printf("Starting permit expiry sweeper (every %s)...", s.cfg.Interval)

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Permit expiry sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce expires every VALID permit whose window ended at or before now and
// returns how many were changed.
func (s *Service) SweepOnce(ctx context.Context) int64 {
	n, err := s.store.ExpirePermits(ctx, s.now().UTC())
	if err != nil {
		log.Printf("Error expiring permits: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("Expired %d permits", n)
		if s.metrics != nil {
			s.metrics.PermitsExpired.Add(float64(n))
		}
	}
	return n
}
