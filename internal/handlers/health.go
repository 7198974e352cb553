package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks that a dependency is reachable. *database.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HandleHealth reports whether the server and its database are up
func HandleHealth(db Pinger, backend string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "store": backend}

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
				respondJSON(w, http.StatusServiceUnavailable, status)
				return
			}
			status["database"] = "ok"
		}

		respondJSON(w, http.StatusOK, status)
	}
}
