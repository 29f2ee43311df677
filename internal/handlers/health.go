package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthCheck reports liveness and, when db is set, database reachability.
func HealthCheck(db Pinger) echo.HandlerFunc {
	return func(e echo.Context) error {
		status := http.StatusOK
		body := map[string]string{
			"status":  "healthy",
			"service": "writer",
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(e.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["database"] = "unreachable"
			} else {
				body["database"] = "ok"
			}
		}
		return e.JSON(status, body)
	}
}
