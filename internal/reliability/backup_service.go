// Package reliability keeps the network database healthy: local and
// cloud backups, scheduled checkpoints, and vacuum maintenance.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/database"
)

// localBackupsToKeep bounds the local backup directory.
const localBackupsToKeep = 7

// BackupMetadata describes one backup archive.
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// BackupService produces consistent snapshots of the network database
// as tar.gz archives in a local directory.
type BackupService struct {
	db        *database.DB
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a backup service writing into backupDir.
func NewBackupService(db *database.DB, backupDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:        db,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// CreateBackup snapshots the database and archives it. Returns the
// archive path. VACUUM INTO gives a consistent copy without blocking
// writers.
func (s *BackupService) CreateBackup(ctx context.Context) (string, error) {
	start := time.Now()

	stagingDir, err := os.MkdirTemp(s.backupDir, "staging-*")
	if err != nil {
		if mkErr := os.MkdirAll(s.backupDir, 0755); mkErr != nil {
			return "", fmt.Errorf("failed to create backup directory: %w", mkErr)
		}
		stagingDir, err = os.MkdirTemp(s.backupDir, "staging-*")
		if err != nil {
			return "", fmt.Errorf("failed to create staging directory: %w", err)
		}
	}
	defer os.RemoveAll(stagingDir)

	dbCopy := filepath.Join(stagingDir, "network.db")
	if _, err := s.db.Conn().ExecContext(ctx, "VACUUM INTO ?", dbCopy); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	info, err := os.Stat(dbCopy)
	if err != nil {
		return "", fmt.Errorf("failed to stat database copy: %w", err)
	}
	checksum, err := fileChecksum(dbCopy)
	if err != nil {
		return "", fmt.Errorf("failed to checksum database copy: %w", err)
	}

	metadata := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Database:  "network",
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}
	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := fmt.Sprintf("propnet-backup-%s.tar.gz", time.Now().Format(archiveTimeLayout))
	archivePath := filepath.Join(s.backupDir, archiveName)
	if err := createArchive(archivePath, []string{dbCopy, metadataPath}); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, _ := os.Stat(archivePath)
	s.log.Info().
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Dur("duration", time.Since(start)).
		Msg("Backup created")

	return archivePath, nil
}

// archiveTimeLayout names archives so lexicographic order is
// chronological order.
const archiveTimeLayout = "2006-01-02-150405"

// RotateLocal deletes local archives beyond the retention count,
// oldest first.
func (s *BackupService) RotateLocal() error {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	var archives []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".gz" {
			archives = append(archives, e.Name())
		}
	}
	if len(archives) <= localBackupsToKeep {
		return nil
	}

	sort.Strings(archives)
	for _, name := range archives[:len(archives)-localBackupsToKeep] {
		if err := os.Remove(filepath.Join(s.backupDir, name)); err != nil {
			s.log.Warn().Err(err).Str("archive", name).Msg("Failed to remove old backup")
			continue
		}
		s.log.Info().Str("archive", name).Msg("Removed old local backup")
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive writes a tar.gz containing the given files, stored by
// basename.
func createArchive(archivePath string, files []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, path := range files {
		if err := addFileToArchive(tarWriter, path); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func addFileToArchive(tarWriter *tar.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}
