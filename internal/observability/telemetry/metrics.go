package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métricas de ingestão
	ImportRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_import_rows_total",
		Help: "Linhas CSV processadas, por resultado",
	}, []string{"outcome"})

	ReadingsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_readings_recorded_total",
		Help: "Leituras individuais gravadas, por origem",
	}, []string{"source"})

	// Métricas de detecção
	AnomaliesFlaggedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_anomalies_flagged_total",
		Help: "Leituras marcadas como anomalia, por método",
	}, []string{"method"})

	AnomalyWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_anomaly_write_failures_total",
		Help: "Falhas ao gravar marcações de anomalia",
	})

	SweepDevicesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_sweep_devices_total",
		Help: "Dispositivos processados em varreduras, por status",
	}, []string{"status"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_sweep_duration_seconds",
		Help:    "Duração das varreduras de anomalias",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// Métricas do serviço de modelos
	ModelServiceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_model_service_requests_total",
		Help: "Chamadas ao serviço de modelos, por operação e status",
	}, []string{"operation", "status"})

	ModelServiceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_model_service_latency_seconds",
		Help:    "Latência das chamadas ao serviço de modelos",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
