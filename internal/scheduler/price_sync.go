package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/coincart/coincart/internal/modules/assets"
)

// PriceSyncJob refreshes the quote cache from the upstream market API.
// Keeps REST reads warm even when nobody is browsing, so the first request
// after a quiet period does not pay the upstream round trip.
type PriceSyncJob struct {
	oracle  *assets.Oracle
	timeout time.Duration
	log     zerolog.Logger
}

// NewPriceSyncJob creates a new price sync job
func NewPriceSyncJob(oracle *assets.Oracle, timeout time.Duration, log zerolog.Logger) *PriceSyncJob {
	return &PriceSyncJob{
		oracle:  oracle,
		timeout: timeout,
		log:     log.With().Str("job", "price_sync").Logger(),
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run refreshes all cached quotes
func (j *PriceSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.oracle.SyncQuotes(ctx); err != nil {
		// Upstream outages are routine; the oracle keeps serving stale
		// quotes until the next successful sync
		j.log.Warn().Err(err).Msg("Quote sync failed")
		return nil
	}

	return nil
}
