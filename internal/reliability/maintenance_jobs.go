package reliability

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/database"
)

// HourlyCheckpointJob truncates the WAL and runs a quick integrity
// check. Keeps the WAL from growing unbounded between backups.
type HourlyCheckpointJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewHourlyCheckpointJob creates the hourly checkpoint job.
func NewHourlyCheckpointJob(db *database.DB, log zerolog.Logger) *HourlyCheckpointJob {
	return &HourlyCheckpointJob{
		db:  db,
		log: log.With().Str("job", "hourly_checkpoint").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *HourlyCheckpointJob) Name() string {
	return "hourly_checkpoint"
}

// Run executes the checkpoint.
func (j *HourlyCheckpointJob) Run() error {
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := j.db.QuickCheck(ctx); err != nil {
		return fmt.Errorf("quick check failed: %w", err)
	}
	return nil
}

// NightlyMaintenanceJob vacuums the database, takes a backup, uploads
// it when cloud backup is configured, and checks disk space.
type NightlyMaintenanceJob struct {
	db           *database.DB
	backups      *BackupService
	cloud        *CloudBackupService // nil when not configured
	dataDir      string
	retentionDay int
	log          zerolog.Logger
}

// NewNightlyMaintenanceJob creates the nightly maintenance job. cloud
// may be nil; retention applies to cloud archives.
func NewNightlyMaintenanceJob(
	db *database.DB,
	backups *BackupService,
	cloud *CloudBackupService,
	dataDir string,
	retentionDays int,
	log zerolog.Logger,
) *NightlyMaintenanceJob {
	return &NightlyMaintenanceJob{
		db:           db,
		backups:      backups,
		cloud:        cloud,
		dataDir:      dataDir,
		retentionDay: retentionDays,
		log:          log.With().Str("job", "nightly_maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *NightlyMaintenanceJob) Name() string {
	return "nightly_maintenance"
}

// Run executes the nightly maintenance sequence.
func (j *NightlyMaintenanceJob) Run() error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if err := j.db.Vacuum(); err != nil {
		j.log.Warn().Err(err).Msg("Vacuum failed")
	}

	if j.cloud != nil {
		if err := j.cloud.CreateAndUpload(ctx); err != nil {
			j.log.Error().Err(err).Msg("Cloud backup failed, local backup only")
			if _, err := j.backups.CreateBackup(ctx); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
		} else if err := j.cloud.RotateOld(ctx, j.retentionDay); err != nil {
			j.log.Warn().Err(err).Msg("Cloud backup rotation failed")
		}
	} else {
		if _, err := j.backups.CreateBackup(ctx); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
	}

	if err := j.backups.RotateLocal(); err != nil {
		j.log.Warn().Err(err).Msg("Local backup rotation failed")
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().Dur("duration", time.Since(start)).Msg("Nightly maintenance completed")
	return nil
}

// checkDiskSpace fails when free space drops below 500MB.
func (j *NightlyMaintenanceJob) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	if err := syscall.Statfs(j.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(stat.Bavail*uint64(stat.Bsize)) / 1e9
	if availableGB < 0.5 {
		return fmt.Errorf("only %.2f GB free on data volume", availableGB)
	}
	if availableGB < 5.0 {
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}
