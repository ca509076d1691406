package presence

import (
	"context"
	"log"
	"time"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/observability"
)

// SweepStore is the storage surface the sweeper reconciles against.
type SweepStore interface {
	FindStaleOnline(ctx context.Context, olderThan time.Time) ([]models.PresenceStatus, error)
	SetOffline(ctx context.Context, userID string, at time.Time) error
}

// Sweeper periodically corrects drift between the persisted presence cache
// and the registry, covering connections that vanished without a clean
// disconnect. Best-effort: a crashed user can appear online for up to one
// sweep interval.
type Sweeper struct {
	registry  *Registry
	store     SweepStore
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

// NewSweeper constructs a Sweeper.
func NewSweeper(registry *Registry, store SweepStore, interval, threshold time.Duration) *Sweeper {
	return &Sweeper{
		registry:  registry,
		store:     store,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run executes sweep passes until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep flips persisted records to offline when they are flagged online,
// stale past the threshold, and have no live connection in the registry.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now().UTC()
	stale, err := s.store.FindStaleOnline(ctx, now.Add(-s.threshold))
	if err != nil {
		log.Printf("presence sweep query failed: %v", err)
		observability.IncPresenceSweep("error")
		return
	}

	corrected := 0
	for _, status := range stale {
		if s.registry.IsOnline(status.UserID) {
			continue
		}
		if err := s.store.SetOffline(ctx, status.UserID, now); err != nil {
			log.Printf("presence sweep write failed for %s: %v", status.UserID, err)
			continue
		}
		corrected++
	}
	if corrected > 0 {
		log.Printf("presence sweep corrected %d stale records", corrected)
	}
	observability.IncPresenceSweep("ok")
}
