package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChannelConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetview_channel_connects_total",
		Help: "Conexiones establecidas con el canal de telemetría",
	}, []string{"channel"})
	ChannelDisconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetview_channel_disconnects_total",
		Help: "Desconexiones del canal de telemetría",
	}, []string{"channel"})
	TelemetryEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetview_telemetry_events_total",
		Help: "Eventos de telemetría por resultado (applied, malformed, dropped)",
	}, []string{"result"})
	Resyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetview_resyncs_total",
		Help: "Snapshots completos aplicados al store",
	})
	ReconcilePasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetview_reconcile_passes_total",
		Help: "Pasadas de reconciliación ejecutadas",
	})
	CoalescedEvents = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleetview_coalesced_events",
		Help:    "Eventos agrupados en una sola pasada",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
	})
	MarkerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetview_marker_ops_total",
		Help: "Operaciones sobre marcadores de vehículos",
	}, []string{"op"})
	OverlayRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetview_overlay_rebuilds_total",
		Help: "Reconstrucciones completas de overlays de rutas",
	})
	ViewportCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetview_viewport_commands_total",
		Help: "Comandos de cámara emitidos (fit, center, follow)",
	}, []string{"kind"})
	OptimizationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetview_optimization_requests_total",
		Help: "Solicitudes al optimizador por resultado",
	}, []string{"result"})
	RenderCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetview_render_commands_total",
		Help: "Comandos NDJSON enviados al widget",
	}, []string{"op"})
	PassLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleetview_pass_latency_seconds",
		Help:    "Latencia de cada pasada de reconciliación",
		Buckets: prometheus.DefBuckets,
	})
)

func ObservePassLatency(start time.Time) {
	PassLatency.Observe(time.Since(start).Seconds())
}
