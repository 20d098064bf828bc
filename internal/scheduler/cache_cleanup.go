package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coincart/coincart/internal/clientdata"
	"github.com/coincart/coincart/internal/database"
)

// CacheCleanupJob evicts expired cache entries and checkpoints the cache WAL
// so the file does not grow without bound.
type CacheCleanupJob struct {
	repo    *clientdata.Repository
	cacheDB *database.DB
	log     zerolog.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(repo *clientdata.Repository, cacheDB *database.DB, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		repo:    repo,
		cacheDB: cacheDB,
		log:     log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Run deletes expired entries from every cache table
func (j *CacheCleanupJob) Run() error {
	deleted, err := j.repo.DeleteAllExpired()
	if err != nil {
		return fmt.Errorf("failed to delete expired cache entries: %w", err)
	}

	var total int64
	for _, n := range deleted {
		total += n
	}
	if total > 0 {
		j.log.Info().Int64("deleted", total).Msg("Evicted expired cache entries")
	}

	if err := j.cacheDB.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("failed to checkpoint cache database: %w", err)
	}

	return nil
}
