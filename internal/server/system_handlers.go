package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/nedlands/propnet/internal/config"
	"github.com/nedlands/propnet/internal/database"
	"github.com/nedlands/propnet/internal/events"
	"github.com/nedlands/propnet/internal/reliability"
)

const serviceVersion = "1.0.0"

// SystemHandlers exposes health, resource usage, and backup endpoints.
type SystemHandlers struct {
	cfg       *config.Config
	db        *database.DB
	bus       *events.Bus
	backups   *reliability.BackupService
	cloud     *reliability.CloudBackupService // nil when cloud upload is not configured
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(cfg *config.Config, db *database.DB, bus *events.Bus, backups *reliability.BackupService, cloud *reliability.CloudBackupService, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		cfg:       cfg,
		db:        db,
		bus:       bus,
		backups:   backups,
		cloud:     cloud,
		startTime: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth handles GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.db.QuickCheck(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, h.log, code, map[string]interface{}{
		"status":  status,
		"service": "propnet",
		"version": serviceVersion,
	})
}

// HandleStatus handles GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var cpuPercent float64
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}

	var memPercent float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	}

	data := map[string]interface{}{
		"version":        serviceVersion,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
		"subscribers":    h.bus.SubscriberCount(),
		"dev_mode":       h.cfg.DevMode,
	}

	if stats, err := h.db.GetStats(); err == nil {
		data["database"] = databaseStatsPayload(stats)
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data":     data,
		"metadata": meta(),
	})
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetStats()
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data":     databaseStatsPayload(stats),
		"metadata": meta(),
	})
}

// HandleDiskUsage handles GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := disk.Usage(h.cfg.DataDir)
	if err != nil {
		h.log.Error().Err(err).Str("path", h.cfg.DataDir).Msg("Disk usage check failed")
		writeError(w, h.log, http.StatusInternalServerError, "INTERNAL", "failed to read disk usage")
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"path":         usage.Path,
			"total_bytes":  usage.Total,
			"free_bytes":   usage.Free,
			"used_bytes":   usage.Used,
			"used_percent": usage.UsedPercent,
		},
		"metadata": meta(),
	})
}

// HandleBackup handles POST /api/system/backup
func (h *SystemHandlers) HandleBackup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Upload bool `json:"upload"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	data := map[string]interface{}{}

	if req.Upload && h.cloud != nil {
		if err := h.cloud.CreateAndUpload(r.Context()); err != nil {
			h.log.Error().Err(err).Msg("Cloud backup failed")
			writeError(w, h.log, http.StatusInternalServerError, "BACKUP_FAILED", "cloud backup failed")
			return
		}
		data["uploaded"] = true
		if remote, err := h.cloud.ListBackups(r.Context()); err == nil {
			data["cloud_backups"] = remote
		}
	} else {
		path, err := h.backups.CreateBackup(r.Context())
		if err != nil {
			h.log.Error().Err(err).Msg("Backup failed")
			writeError(w, h.log, http.StatusInternalServerError, "BACKUP_FAILED", "backup failed")
			return
		}
		data["uploaded"] = false
		data["path"] = path
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data":     data,
		"metadata": meta(),
	})
}

func databaseStatsPayload(stats *database.Stats) map[string]interface{} {
	return map[string]interface{}{
		"size_bytes":     stats.SizeBytes,
		"wal_size_bytes": stats.WALSizeBytes,
		"page_count":     stats.PageCount,
		"page_size":      stats.PageSize,
		"freelist_count": stats.FreelistCount,
	}
}
