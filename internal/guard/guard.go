// Package guard enforces the rolling-window production cap.
//
// The accounting window is a rolling seven days rather than a calendar week:
// admission decisions then depend only on the trailing window, not on how
// close the clock is to an arbitrary week boundary.
package guard

import (
	"context"
	"fmt"
	"time"

	"briefcast/internal/config"
	"briefcast/internal/queue"
	"briefcast/internal/services"
)

// Window is the rolling accounting period for the production cap.
const Window = 7 * 24 * time.Hour

// Guard answers whether a new production may start. The check and the
// reservation happen in one store transaction, so two concurrent requests
// cannot both slip past the cap.
type Guard struct {
	store *queue.Store
	cap   int
}

// New constructs a guard using the configured weekly cap.
func New(cfg *config.Config, store *queue.Store) *Guard {
	capValue := 0
	if cfg != nil {
		capValue = cfg.Production.WeeklyCap
	}
	return &Guard{store: store, cap: capValue}
}

// TryReserve admits one production or returns services.ErrCapExceeded.
// Denial happens before any job record exists, so the caller can surface it
// synchronously.
func (g *Guard) TryReserve(ctx context.Context) error {
	return g.TryReserveFor(ctx, "")
}

// TryReserveFor is TryReserve with the job id recorded against the
// reservation for observability. The id may be empty when reservation
// precedes job creation.
func (g *Guard) TryReserveFor(ctx context.Context, jobID string) error {
	reserved, err := g.store.TryReserveProduction(ctx, g.cap, Window, jobID)
	if err != nil {
		return fmt.Errorf("reserve production: %w", err)
	}
	if !reserved {
		return fmt.Errorf("%w: %d productions in the last 7 days", services.ErrCapExceeded, g.cap)
	}
	return nil
}

// Prune drops accounting rows that have aged out of the window. The cap
// math never reads them again; the daemon prunes at startup.
func (g *Guard) Prune(ctx context.Context) error {
	if _, err := g.store.PruneProductions(ctx, time.Now().Add(-Window)); err != nil {
		return fmt.Errorf("prune productions: %w", err)
	}
	return nil
}

// Usage reports productions started within the current window and the cap.
func (g *Guard) Usage(ctx context.Context) (used, capValue int, err error) {
	count, err := g.store.CountProductionsSince(ctx, time.Now().Add(-Window))
	if err != nil {
		return 0, g.cap, err
	}
	return count, g.cap, nil
}
