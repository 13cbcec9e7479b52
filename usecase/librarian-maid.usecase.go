package usecase

import (
	"context"
	"time"
)

const DefaultSweepInterval = time.Minute

type Cleaner interface {
	Clean() int
}

// LibrarianMaid periodically reclaims trackers nobody subscribes to.
type LibrarianMaid struct {
	librarian Cleaner
	interval  time.Duration
}

func NewLibrarianMaid(librarian Cleaner, interval time.Duration) *LibrarianMaid {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &LibrarianMaid{
		librarian: librarian,
		interval:  interval,
	}
}

// Run sweeps every interval until ctx is done.
func (m *LibrarianMaid) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := m.librarian.Clean(); removed > 0 {
				logger.Info().Int("removed", removed).Msg("idle trackers swept")
			}
		}
	}
}
