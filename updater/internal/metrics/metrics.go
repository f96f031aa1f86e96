// Package metrics exposes tick outcomes in Prometheus format, either over
// HTTP or as a node_exporter textfile for single-shot runs.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/hivewatch/hivewatch/updater/internal/updater"
)

// Tick outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeFailed      = "failed"
	OutcomeFetchFailed = "fetch_failed"
)

// Metrics holds the updater's collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	ticks       *prometheus.CounterVec
	writes      *prometheus.CounterVec
	reasons     *prometheus.CounterVec
	hives       prometheus.Gauge
	alerting    prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Histogram
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hivewatch_ticks_total",
			Help: "Update ticks by outcome.",
		}, []string{"outcome"}),
		writes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hivewatch_hive_writes_total",
			Help: "Per-hive writes by outcome.",
		}, []string{"outcome"}),
		reasons: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hivewatch_alert_reasons_total",
			Help: "Alert reasons written, by reason.",
		}, []string{"reason"}),
		hives: f.NewGauge(prometheus.GaugeOpts{
			Name: "hivewatch_hives",
			Help: "Hives seen by the last tick that fetched successfully.",
		}),
		alerting: f.NewGauge(prometheus.GaugeOpts{
			Name: "hivewatch_hives_alerting",
			Help: "Hives written with alert=true by the last tick.",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "hivewatch_last_success_timestamp_seconds",
			Help: "Unix time the last fully successful tick finished.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hivewatch_tick_duration_seconds",
			Help:    "Wall time of ticks that fetched successfully.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// TrackSkipped exports fn as hivewatch_ticks_skipped_total.
func (m *Metrics) TrackSkipped(fn func() int64) {
	promauto.With(m.reg).NewCounterFunc(prometheus.CounterOpts{
		Name: "hivewatch_ticks_skipped_total",
		Help: "Ticks dropped because the previous one was still running.",
	}, func() float64 { return float64(fn()) })
}

// Observe records the outcome of one Updater.Run call.
func (m *Metrics) Observe(report *updater.Report, err error) {
	if report == nil {
		m.ticks.WithLabelValues(OutcomeFetchFailed).Inc()
		return
	}

	m.hives.Set(float64(len(report.Results)))
	m.alerting.Set(float64(report.Alerting()))
	m.duration.Observe(report.Duration().Seconds())

	for _, res := range report.Results {
		if res.Err != nil {
			m.writes.WithLabelValues(OutcomeFailed).Inc()
			continue
		}
		m.writes.WithLabelValues(OutcomeOK).Inc()
		for _, r := range res.Record.AlertReasons {
			m.reasons.WithLabelValues(r).Inc()
		}
	}

	if err != nil {
		m.ticks.WithLabelValues(OutcomeFailed).Inc()
		return
	}
	m.ticks.WithLabelValues(OutcomeOK).Inc()
	m.lastSuccess.Set(float64(report.FinishedAt.Unix()))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry in text exposition format to path. The
// file is replaced atomically so a concurrent collector never reads a partial
// write.
func (m *Metrics) WriteTextfile(path string) error {
	families, err := m.reg.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".hivewatch-*.prom")
	if err != nil {
		return fmt.Errorf("metrics: textfile: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("metrics: textfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: textfile: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("metrics: textfile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("metrics: textfile: %w", err)
	}
	return nil
}
