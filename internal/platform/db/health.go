package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is a snapshot of the PostgreSQL pool.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Pinger is implemented by storage backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageHealth describes the storage backend behind /health/storage.
type StorageHealth struct {
	Driver string
	// Pinger is nil for backends with nothing to check, such as memory.
	Pinger Pinger
	// Pool, when set, adds PostgreSQL pool statistics to the response.
	Pool *pgxpool.Pool
}

const pingTimeout = 5 * time.Second

// HealthHandler reports whether the storage backend is reachable.
func HealthHandler(h StorageHealth) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := map[string]interface{}{"status": "healthy", "driver": h.Driver}

		var err error
		if h.Pinger != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
			defer cancel()
			err = h.Pinger.Ping(ctx)
		}

		if h.Pool != nil {
			stats := GetPoolStats(h.Pool)
			if err != nil {
				stats.Healthy = false
			}
			body["pool"] = stats
		}

		if err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}
