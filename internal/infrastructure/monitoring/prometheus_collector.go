package monitoring

import (
	"time"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports lifecycle metrics. Implements
// ports.MetricsRecorder; all prometheus primitives are concurrency-safe.
type PrometheusCollector struct {
	creationsTotal *prometheus.CounterVec
	deletionsTotal *prometheus.CounterVec
	transfersTotal *prometheus.CounterVec
	liveInstances  *prometheus.GaugeVec
	sweepDuration  prometheus.Histogram
	sweepReaped    prometheus.Counter
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		creationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvox_channels_created_total",
			Help: "Total number of ephemeral channels created",
		}, []string{"community"}),

		deletionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvox_channels_deleted_total",
			Help: "Total number of ephemeral channels deleted, by reason",
		}, []string{"reason"}),

		transfersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvox_ownership_transfers_total",
			Help: "Total number of ownership transfers",
		}, []string{"mode"}),

		liveInstances: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tempvox_live_instances",
			Help: "Number of live channel instances per community",
		}, []string{"community"}),

		sweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tempvox_sweep_duration_seconds",
			Help:    "Duration of cleanup sweep passes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),

		sweepReaped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tempvox_sweep_reaped_total",
			Help: "Total number of instances reclaimed by the sweeper",
		}),
	}
}

func (p *PrometheusCollector) RecordCreation(communityID domain.CommunityID) {
	p.creationsTotal.WithLabelValues(string(communityID)).Inc()
}

func (p *PrometheusCollector) RecordDeletion(reason string) {
	p.deletionsTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordTransfer(automatic bool) {
	mode := "manual"
	if automatic {
		mode = "automatic"
	}
	p.transfersTotal.WithLabelValues(mode).Inc()
}

func (p *PrometheusCollector) SetLiveInstances(communityID domain.CommunityID, n int) {
	p.liveInstances.WithLabelValues(string(communityID)).Set(float64(n))
}

func (p *PrometheusCollector) ObserveSweep(d time.Duration, reaped int) {
	p.sweepDuration.Observe(d.Seconds())
	p.sweepReaped.Add(float64(reaped))
}
