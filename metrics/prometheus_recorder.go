package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "metronome"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg          *prom.Registry
	beats        prom.Counter
	lateness     prom.Histogram
	bpm          prom.Gauge
	selectedBPM  prom.Gauge
	tempoChanges *prom.CounterVec
	renders      prom.Counter
	dropped      *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg, or on a fresh
// registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		beats: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "beats_total",
			Help:      "Beats emitted by the scheduler",
		}),
		lateness: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "beat_lateness_seconds",
			Help:      "Delay between a beat's deadline and the moment it fired",
			Buckets:   []float64{.0001, .0005, .001, .002, .005, .01, .025, .05, .1},
		}),
		bpm: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "bpm",
			Help:      "Tempo currently used by the scheduler",
		}),
		selectedBPM: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_bpm",
			Help:      "Tempo last selected with the buttons, 0 before the first press",
		}),
		tempoChanges: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "tempo_changes_total",
			Help:      "Debounced button presses by direction",
		}, []string{"direction"}),
		renders: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "display_renders_total",
			Help:      "Display updates rendered",
		}),
		dropped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "output_edges_dropped_total",
			Help:      "Beat edges discarded because an asynchronous output fell behind",
		}, []string{"output"}),
	}
	reg.MustRegister(pr.beats, pr.lateness, pr.bpm, pr.selectedBPM, pr.tempoChanges, pr.renders, pr.dropped)
	return pr
}

// ObserveBeat implements Recorder.
func (pr *PrometheusRecorder) ObserveBeat(bpm int, lateness time.Duration) {
	pr.beats.Inc()
	pr.bpm.Set(float64(bpm))
	pr.lateness.Observe(lateness.Seconds())
}

// IncTempoChange implements Recorder.
func (pr *PrometheusRecorder) IncTempoChange(direction string, bpm int) {
	pr.tempoChanges.WithLabelValues(direction).Inc()
	pr.selectedBPM.Set(float64(bpm))
}

// IncRender implements Recorder.
func (pr *PrometheusRecorder) IncRender() {
	pr.renders.Inc()
}

// IncOutputDropped implements Recorder.
func (pr *PrometheusRecorder) IncOutputDropped(output string) {
	pr.dropped.WithLabelValues(output).Inc()
}

// RegisterLogDrops exposes the number of diagnostic lines dropped by the async log writer.
func (pr *PrometheusRecorder) RegisterLogDrops(dropped func() uint64) {
	pr.reg.MustRegister(prom.NewCounterFunc(prom.CounterOpts{
		Namespace: namespace,
		Name:      "log_lines_dropped_total",
		Help:      "Diagnostic log lines discarded because the log backlog was full",
	}, func() float64 { return float64(dropped()) }))
}

// RegisterLogWriteErrors exposes the number of diagnostic lines the log sink failed to write.
func (pr *PrometheusRecorder) RegisterLogWriteErrors(failed func() uint64) {
	pr.reg.MustRegister(prom.NewCounterFunc(prom.CounterOpts{
		Namespace: namespace,
		Name:      "log_write_errors_total",
		Help:      "Diagnostic log lines the log sink failed to write",
	}, func() float64 { return float64(failed()) }))
}

// Registry returns the registry the recorder's metrics live on.
func (pr *PrometheusRecorder) Registry() *prom.Registry {
	return pr.reg
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
