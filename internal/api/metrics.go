package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/hc2-sync/internal/status"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	WebSocket     WSMetrics         `json:"websocket"`
	MQTT          MQTTMetrics       `json:"mqtt"`
	Controller    ControllerMetrics `json:"controller"`
	Directory     DirectoryMetrics  `json:"directory"`
	Events        EventMetrics      `json:"events"`
	Database      *DatabaseMetrics  `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// ControllerMetrics reports the last published connection status.
type ControllerMetrics struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Last      int64  `json:"last,omitempty"`
}

// DirectoryMetrics contains directory cache sizes.
type DirectoryMetrics struct {
	Rooms   int `json:"rooms"`
	Devices int `json:"devices"`
	Unknown int `json:"unknown"`
}

// EventMetrics describes the event synchronization loop.
type EventMetrics struct {
	Running     bool  `json:"running"`
	Cursor      int64 `json:"cursor"`
	Subscribers int   `json:"subscribers"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dir := s.client.Directory()
	engine := s.client.Engine()
	current, published := s.client.Status().Current()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Controller: ControllerMetrics{
			Status: "unknown",
		},
		Directory: DirectoryMetrics{
			Rooms:   len(dir.Rooms()),
			Devices: dir.DeviceCount(),
			Unknown: dir.UnknownCount(),
		},
		Events: EventMetrics{
			Running:     engine.Running(),
			Cursor:      engine.Cursor(),
			Subscribers: engine.SubscriberCount(),
		},
	}

	if published {
		metrics.Controller = ControllerMetrics{
			Status:    string(current.Type),
			Connected: current.Type != status.EventError,
			Last:      current.Last,
		}
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Enabled:   true,
			Connected: s.mqtt.IsConnected(),
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
