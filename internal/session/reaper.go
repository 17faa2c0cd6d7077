package session

import (
	"context"
	"time"

	"github.com/dtroode/srplogin/internal/logger"
)

// Reaper periodically force-ends handshakes that stalled before
// authentication.
type Reaper struct {
	store    *Store
	idle     time.Duration
	interval time.Duration
	logger   *logger.Logger
	onReap   func(n int)
}

// NewReaper creates a Reaper. onReap, if not nil, receives the number of
// connections ended on every tick that ended any.
func NewReaper(store *Store, idle, interval time.Duration, logger *logger.Logger, onReap func(n int)) *Reaper {
	return &Reaper{
		store:    store,
		idle:     idle,
		interval: interval,
		logger:   logger,
		onReap:   onReap,
	}
}

// Run reaps until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			reaped := r.store.Reap(now, r.idle)
			if len(reaped) == 0 {
				continue
			}
			r.logger.Info("Reaper: ended stalled handshakes", "count", len(reaped))
			if r.onReap != nil {
				r.onReap(len(reaped))
			}
		}
	}
}
