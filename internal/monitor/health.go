package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gridwatch/internal/db"
	"gridwatch/internal/realtime"

	"go.uber.org/zap"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// NewMux wires the service HTTP surface: ingest, ws subscription and the
// health probes.
func NewMux(dbMgr *db.DBManager, hub *realtime.Hub, ingestHandler http.HandlerFunc, wsJWTSecret string) *http.ServeMux {
	mux := http.NewServeMux()

	// --- Liveness ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:  "alive",
			Message: "Service is running",
		})
	})

	// --- Readiness ---
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		healthDetails := make(map[string]string)
		var failures []string

		if err := dbMgr.Ping(ctx); err != nil {
			healthDetails["database"] = "unhealthy"
			failures = append(failures, fmt.Sprintf("database unhealthy: %v", err))
		} else {
			healthDetails["database"] = "healthy"
		}

		statusCode := http.StatusOK
		statusMsg := "ready"
		if len(failures) > 0 {
			statusCode = http.StatusServiceUnavailable
			statusMsg = fmt.Sprintf("%d component(s) failing", len(failures))
		}

		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:  statusMsg,
			Details: healthDetails,
		})
	})

	// --- Ingestion endpoint ---
	mux.HandleFunc("/ingest", ingestHandler)

	// --- WebSocket subscription endpoint ---
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		realtime.ServeWS(hub, wsJWTSecret, w, r)
	})

	return mux
}

// StartHTTPServer starts the service HTTP server in the background.
func StartHTTPServer(mux *http.ServeMux, addr string, logger *zap.SugaredLogger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: mux}

	logger.Infof("starting HTTP server on %s", addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("HTTP server stopped", "error", err)
		}
	}()

	return srv
}
