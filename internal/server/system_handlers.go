package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/coincart/coincart/internal/database"
)

// handleSystemStatus reports host resources, database sizes and the state
// of the price feed. Used by the operations dashboard.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
	}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		status["cpu_percent"] = cpuPercent[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}

	dbStats := map[string]interface{}{}
	for name, db := range s.databases() {
		stats, err := db.GetStats()
		if err != nil {
			dbStats[name] = map[string]string{"error": err.Error()}
			continue
		}
		dbStats[name] = map[string]interface{}{
			"size_bytes":     stats.SizeBytes,
			"wal_size_bytes": stats.WALSizeBytes,
			"page_count":     stats.PageCount,
		}
	}
	status["databases"] = dbStats

	if s.feed != nil {
		status["feed_state"] = string(s.feed.State())
	}
	if s.hub != nil {
		status["stream_clients"] = s.hub.ClientCount()
	}
	status["quote_ttl"] = s.oracle.TTL().String()

	s.writeJSON(w, http.StatusOK, status)
}

// databases maps names to the three database handles.
func (s *Server) databases() map[string]*database.DB {
	return map[string]*database.DB{
		"portfolio": s.portfolioDB,
		"ledger":    s.ledgerDB,
		"cache":     s.cacheDB,
	}
}

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
