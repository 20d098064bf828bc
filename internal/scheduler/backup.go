package scheduler

import (
	"context"
	"time"

	"github.com/coincart/coincart/internal/reliability"
)

// backupTimeout bounds a full snapshot-and-upload cycle.
const backupTimeout = 10 * time.Minute

// BackupJob wraps the backup service for the scheduler.
type BackupJob struct {
	service *reliability.BackupService
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *reliability.BackupService) *BackupJob {
	return &BackupJob{service: service}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run creates and uploads a backup archive
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	return j.service.CreateAndUploadBackup(ctx)
}
