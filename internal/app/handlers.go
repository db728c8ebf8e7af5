package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"ssw-alert-watcher/internal/config"
	"ssw-alert-watcher/internal/metrics"
	"ssw-alert-watcher/internal/monitors"
	"ssw-alert-watcher/internal/sinks"
	"ssw-alert-watcher/pkg/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxIngestBody = 10 << 20

// metricsMiddleware registra o tempo de resposta por rota
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		metrics.ResponseTimeSeconds.WithLabelValues(endpoint, r.Method).Observe(time.Since(start).Seconds())
	})
}

// registerHandlers configura as rotas da API administrativa.
//
//   - GET  /health       component health and host CPU
//   - GET  /status       engine snapshot, source and sink counters
//   - GET  /config       effective configuration, secrets redacted
//   - POST /maintenance  {"enabled": bool}
//   - POST /ingest       newline separated access log lines
func (app *App) registerHandlers(router *mux.Router) {
	router.Use(metricsMiddleware)
	if app.tracingManager != nil && app.tracingManager.IsEnabled() {
		router.Use(tracing.TraceHandler(app.tracingManager.GetTracer(), "http_request"))
	}

	router.HandleFunc("/health", app.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/status", app.statusHandler).Methods(http.MethodGet)
	router.HandleFunc("/config", app.configHandler).Methods(http.MethodGet)
	router.HandleFunc("/maintenance", app.maintenanceHandler).Methods(http.MethodPost)
	router.HandleFunc("/ingest", app.ingestHandler).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// healthHandler retorna 503 somente quando a fonte de linhas parou; sinks
// com problema deixam o status "degraded".
func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]interface{}{
		"source": map[string]interface{}{
			"status": statusString(app.source.IsHealthy()),
			"name":   app.source.Status().Name,
		},
	}

	status := "healthy"
	if !app.source.IsHealthy() {
		status = "unhealthy"
	}

	sinkHealth := app.alertSinks.Health()
	sinkStatus := make(map[string]string, len(sinkHealth))
	for name, healthy := range sinkHealth {
		sinkStatus[name] = statusString(healthy)
		if !healthy && status == "healthy" {
			status = "degraded"
		}
	}
	components["sinks"] = sinkStatus

	if app.reloader != nil {
		components["hot_reload"] = statusString(app.reloader.IsHealthy())
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"version":    app.currentConfig().App.Version,
		"uptime":     time.Since(app.startTime).Round(time.Second).String(),
		"components": components,
		"system": map[string]interface{}{
			"cpu_percent": app.systemCollector.LastCPUPercent(),
			"goroutines":  runtime.NumGoroutine(),
		},
		"check_time": time.Now().UTC().Format(time.RFC3339),
	})
}

func statusString(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

func (app *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	sinkStats := map[string]sinks.DeliveryStats{}
	if app.slackSink != nil {
		sinkStats["slack"] = app.slackSink.Stats()
	}
	if app.kafkaSink != nil {
		sinkStats["kafka"] = app.kafkaSink.Stats()
	}

	response := map[string]interface{}{
		"engine":     app.engine.Status(),
		"source":     app.source.Status(),
		"sinks":      app.alertSinks.Names(),
		"deliveries": sinkStats,
	}
	if app.reloader != nil {
		response["hot_reload"] = app.reloader.GetStats()
	}

	writeJSON(w, http.StatusOK, response)
}

// configHandler expõe a configuração efetiva; threshold, maintenance mode e
// window_size refletem o engine, que pode divergir do arquivo recarregado.
func (app *App) configHandler(w http.ResponseWriter, r *http.Request) {
	view := config.Redact(app.currentConfig())

	status := app.engine.Status()
	view.Watcher.ErrorRateThreshold = status.Threshold
	view.Watcher.MaintenanceMode = status.MaintenanceMode
	view.Watcher.WindowSize = status.WindowCapacity

	writeJSON(w, http.StatusOK, view)
}

type maintenanceRequest struct {
	Enabled *bool `json:"enabled"`
}

func (app *App) maintenanceHandler(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `missing required field: enabled`)
		return
	}

	app.engine.SetMaintenanceMode(*req.Enabled)
	app.logger.WithFields(logrus.Fields{
		"maintenance_mode": *req.Enabled,
		"client_ip":        r.RemoteAddr,
	}).Warn("Maintenance mode changed via API")

	writeJSON(w, http.StatusOK, map[string]bool{"maintenance_mode": *req.Enabled})
}

// ingestHandler alimenta o engine com as linhas do corpo, na ordem recebida.
// Linhas acima de monitors.MaxLineBytes são descartadas e contadas.
func (app *App) ingestHandler(w http.ResponseWriter, r *http.Request) {
	reader := monitors.NewLineReader(http.MaxBytesReader(w, r.Body, maxIngestBody), monitors.MaxLineBytes)

	lines, skipped := 0, 0
	for {
		line, tooLong, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			app.logger.WithError(err).WithFields(tracing.LogFields(r.Context())).Warn("Ingest request truncated")
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body after %d lines: %v", lines, err))
			return
		}
		if tooLong {
			skipped++
			metrics.RecordError("http_ingest", "line_too_long")
			continue
		}
		app.engine.Process(r.Context(), line)
		metrics.RecordLineRead("http")
		lines++
	}

	if skipped > 0 {
		app.logger.WithFields(logrus.Fields{
			"skipped":   skipped,
			"max_bytes": monitors.MaxLineBytes,
		}).Warn("Ingest request had oversized lines")
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "accepted",
		"lines":   lines,
		"skipped": skipped,
	})
}
