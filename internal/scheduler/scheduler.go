package scheduler

import (
	"context"
	"log"
	"time"

	"pricetracker/internal/products"
)

// Sweeper runs one full pass over every tracked product.
type Sweeper interface {
	UpdateAll(ctx context.Context) ([]products.Result, error)
}

type Config struct {
	Interval time.Duration
}

// Run drives the periodic price sweep and blocks until ctx is
// cancelled. The first sweep runs immediately, then one per interval.
// The loop only consumes ticks between sweeps, so two sweeps never run
// concurrently within this process.
func Run(ctx context.Context, sw Sweeper, cfg Config) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("scheduler: started, interval %v", interval)

	sweep(ctx, sw)

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopping due to context cancelled")
			return
		case <-ticker.C:
			sweep(ctx, sw)
		}
	}
}

func sweep(ctx context.Context, sw Sweeper) {
	results, err := sw.UpdateAll(ctx)
	if err != nil {
		log.Printf("scheduler: sweep aborted: %v", err)
		return
	}
	log.Printf("scheduler: sweep complete, %d products updated", len(results))
}
