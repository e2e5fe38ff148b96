package reliability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// cloudBackupPrefix namespaces backup archives in the bucket.
const cloudBackupPrefix = "propnet-backup-"

// minCloudBackupsToKeep are never rotated away regardless of age.
const minCloudBackupsToKeep = 3

// CloudBackupInfo describes one archive in the bucket.
type CloudBackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// CloudBackupService uploads local backup archives to an S3-compatible
// bucket and rotates old ones.
type CloudBackupService struct {
	s3      *S3Client
	backups *BackupService
	log     zerolog.Logger
}

// NewCloudBackupService creates a cloud backup service.
func NewCloudBackupService(s3 *S3Client, backups *BackupService, log zerolog.Logger) *CloudBackupService {
	return &CloudBackupService{
		s3:      s3,
		backups: backups,
		log:     log.With().Str("service", "cloud_backup").Logger(),
	}
}

// CreateAndUpload produces a fresh local backup and pushes it to the
// bucket.
func (s *CloudBackupService) CreateAndUpload(ctx context.Context) error {
	archivePath, err := s.backups.CreateBackup(ctx)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	key := filepath.Base(archivePath)
	if err := s.s3.Upload(ctx, key, file); err != nil {
		return err
	}

	s.log.Info().Str("key", key).Msg("Cloud backup uploaded")
	return nil
}

// ListBackups returns all archives in the bucket, newest first.
func (s *CloudBackupService) ListBackups(ctx context.Context) ([]CloudBackupInfo, error) {
	objects, err := s.s3.List(ctx, cloudBackupPrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	backups := make([]CloudBackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		key := *obj.Key
		if !strings.HasSuffix(key, ".tar.gz") {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(key, cloudBackupPrefix), ".tar.gz")
		timestamp, err := time.Parse(archiveTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Unparseable backup key, skipping")
			continue
		}

		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, CloudBackupInfo{
			Key:       key,
			Timestamp: timestamp,
			SizeBytes: size,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOld deletes archives older than retentionDays, always keeping
// the newest few. retentionDays 0 keeps everything.
func (s *CloudBackupService) RotateOld(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= minCloudBackupsToKeep {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, b := range backups {
		if i < minCloudBackupsToKeep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.s3.Delete(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old cloud backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Cloud backup rotation completed")
	return nil
}
