package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Version is stamped at build time via -ldflags.
var Version = "1.0.0"

// CacheLister enumerates cached entries so the disk endpoint can
// report how many the store currently holds.
type CacheLister interface {
	Keys(pattern string) ([]string, error)
}

// SystemHandlers serves the health and host-resource endpoints.
type SystemHandlers struct {
	dataDir string
	cache   CacheLister
	log     zerolog.Logger
}

// NewSystemHandlers creates system handlers. dataDir is the directory
// reported by the disk usage endpoint.
func NewSystemHandlers(dataDir string, cache CacheLister, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		dataDir: dataDir,
		cache:   cache,
		log:     log.With().Str("handler", "system").Logger(),
	}
}

// HandleStatus is the unauthenticated health check.
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   Version,
	})
}

// DiskUsageResponse reports host resource usage for the cache volume.
type DiskUsageResponse struct {
	Path          string  `json:"path"`
	TotalMB       float64 `json:"totalMB"`
	UsedMB        float64 `json:"usedMB"`
	FreeMB        float64 `json:"freeMB"`
	UsedPercent   float64 `json:"usedPercent"`
	CacheEntries  int     `json:"cacheEntries"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
}

// HandleDiskUsage returns disk and host resource statistics for the
// volume holding the cache data.
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to read disk usage")
		http.Error(w, "Failed to read disk usage", http.StatusInternalServerError)
		return
	}

	entries, err := h.cache.Keys("*")
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count cache entries")
	}

	cpuPercent, memPercent := h.hostStats()

	h.writeJSON(w, DiskUsageResponse{
		Path:          h.dataDir,
		TotalMB:       float64(usage.Total) / 1024 / 1024,
		UsedMB:        float64(usage.Used) / 1024 / 1024,
		FreeMB:        float64(usage.Free) / 1024 / 1024,
		UsedPercent:   usage.UsedPercent,
		CacheEntries:  len(entries),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
	})
}

// hostStats samples CPU over 100ms so the endpoint stays fast.
func (h *SystemHandlers) hostStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
