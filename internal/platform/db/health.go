package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const pingTimeout = 5 * time.Second

// PoolStats is a snapshot of the connection pool, exposed on the DB health
// endpoint so saturation is visible without a metrics stack.
type PoolStats struct {
	Total    int32  `json:"total_conns"`
	Idle     int32  `json:"idle_conns"`
	InUse    int32  `json:"acquired_conns"`
	Max      int32  `json:"max_conns"`
	Acquires int64  `json:"acquire_count"`
	WaitTime string `json:"acquire_duration"`
}

func snapshotPool(pool *pgxpool.Pool) *PoolStats {
	s := pool.Stat()
	return &PoolStats{
		Total:    s.TotalConns(),
		Idle:     s.IdleConns(),
		InUse:    s.AcquiredConns(),
		Max:      s.MaxConns(),
		Acquires: s.AcquireCount(),
		WaitTime: s.AcquireDuration().String(),
	}
}

type healthResponse struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Pool   *PoolStats `json:"pool"`
}

// HealthHandler reports database reachability plus pool statistics. A ping
// failure answers 503.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, healthResponse{
				Status: "unhealthy",
				Error:  err.Error(),
				Pool:   snapshotPool(pool),
			})
		}
		return c.JSON(http.StatusOK, healthResponse{
			Status: "healthy",
			Pool:   snapshotPool(pool),
		})
	}
}
