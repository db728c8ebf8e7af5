package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// Linhas lidas da fonte, por resultado de parsing
	LinesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_lines_processed_total",
			Help: "Total number of access log lines processed",
		},
		[]string{"result"},
	)

	// Linhas lidas por fonte
	LinesReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_lines_read_total",
			Help: "Total number of lines read from a source",
		},
		[]string{"source"},
	)

	WindowSamples = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watcher_window_samples",
		Help: "Number of status codes currently held in the sliding window",
	})

	ErrorRatePercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watcher_error_rate_percent",
		Help: "Current percentage of 5xx responses in the sliding window",
	})

	// 1 para o pool ativo, 0 para os demais já vistos
	CurrentPool = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_current_pool",
			Help: "Pool currently serving traffic (1 = active)",
		},
		[]string{"pool"},
	)

	FailoversDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watcher_failovers_detected_total",
		Help: "Total number of pool transitions observed",
	})

	AlertsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_alerts_dispatched_total",
			Help: "Total number of alerts handed to sinks",
		},
		[]string{"kind"},
	)

	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_alerts_suppressed_total",
			Help: "Total number of alerts dropped by cooldown or maintenance mode",
		},
		[]string{"kind", "reason"},
	)

	SinkDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_sink_deliveries_total",
			Help: "Total number of alert deliveries per sink and outcome",
		},
		[]string{"sink", "status"},
	)

	SinkSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watcher_sink_send_duration_seconds",
			Help:    "Time spent delivering an alert to a sink",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"sink"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_component_health",
			Help: "Health status of components (1 = healthy, 0 = unhealthy)",
		},
		[]string{"component_type", "component_name"},
	)

	ResponseTimeSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watcher_http_response_time_seconds",
			Help:    "Admin API response time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	ConfigReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_config_reloads_total",
			Help: "Total number of configuration reload attempts",
		},
		[]string{"status"},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
		[]string{"type"},
	)

	CPUUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watcher_cpu_usage_percent",
		Help: "Host CPU usage percentage",
	})

	Goroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watcher_goroutines",
		Help: "Number of goroutines",
	})
)

// MetricsServer servidor HTTP para métricas Prometheus
type MetricsServer struct {
	server *http.Server
	logger *logrus.Logger
}

// NewMetricsServer cria um novo servidor de métricas
func NewMetricsServer(addr, path string, logger *logrus.Logger) *MetricsServer {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start inicia o servidor de métricas
func (ms *MetricsServer) Start() error {
	ms.logger.WithField("addr", ms.server.Addr).Info("Starting metrics server")

	go func() {
		if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ms.logger.WithError(err).Error("Metrics server error")
		}
	}()

	return nil
}

// Stop para o servidor de métricas
func (ms *MetricsServer) Stop() error {
	ms.logger.Info("Stopping metrics server")
	return ms.server.Close()
}

// Funções auxiliares para métricas comuns

// RecordLineProcessed registra uma linha processada pelo engine
func RecordLineProcessed(result string) {
	LinesProcessedTotal.WithLabelValues(result).Inc()
}

// RecordLineRead registra uma linha lida de uma fonte
func RecordLineRead(source string) {
	LinesReadTotal.WithLabelValues(source).Inc()
}

// SetWindowState publica o tamanho da janela e a taxa de erro atual
func SetWindowState(samples int, ratePercent float64) {
	WindowSamples.Set(float64(samples))
	ErrorRatePercent.Set(ratePercent)
}

// SetCurrentPool marca o pool ativo
func SetCurrentPool(previous, current string) {
	if previous != "" {
		CurrentPool.WithLabelValues(previous).Set(0)
	}
	if current != "" {
		CurrentPool.WithLabelValues(current).Set(1)
	}
}

// RecordFailoverDetected registra uma troca de pool
func RecordFailoverDetected() {
	FailoversDetectedTotal.Inc()
}

// RecordAlertDispatched registra um alerta entregue aos sinks
func RecordAlertDispatched(kind string) {
	AlertsDispatchedTotal.WithLabelValues(kind).Inc()
}

// RecordAlertSuppressed registra um alerta descartado
func RecordAlertSuppressed(kind, reason string) {
	AlertsSuppressedTotal.WithLabelValues(kind, reason).Inc()
}

// RecordSinkDelivery registra o resultado de uma entrega
func RecordSinkDelivery(sink, status string) {
	SinkDeliveriesTotal.WithLabelValues(sink, status).Inc()
}

// RecordSinkSendDuration registra a duração de envio para sink
func RecordSinkSendDuration(sink string, duration time.Duration) {
	SinkSendDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

// RecordError registra um erro
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// SetComponentHealth define o status de saúde de um componente
func SetComponentHealth(componentType, componentName string, healthy bool) {
	var value float64
	if healthy {
		value = 1
	}
	ComponentHealth.WithLabelValues(componentType, componentName).Set(value)
}

// RecordConfigReload registra uma tentativa de reload
func RecordConfigReload(status string) {
	ConfigReloadsTotal.WithLabelValues(status).Inc()
}
