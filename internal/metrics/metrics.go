// Package metrics collects Prometheus metrics for one seeding run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Batch outcomes.
const (
	StatusOK     = "ok"
	StatusRetry  = "retry"
	StatusFailed = "failed"
)

// Collector owns a private registry so concurrent runs never share series.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	RowsInserted   *prometheus.CounterVec
	Batches        *prometheus.CounterVec
	BatchDuration  *prometheus.HistogramVec
	RowsBackfilled *prometheus.CounterVec
	TablesFailed   *prometheus.CounterVec
	RunDuration    *prometheus.GaugeVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		RowsInserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graftseed_rows_inserted_total",
				Help: "Rows committed per table",
			},
			[]string{"table"},
		),
		Batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graftseed_batches_total",
				Help: "Batch attempts by outcome",
			},
			[]string{"table", "status"},
		),
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graftseed_batch_duration_seconds",
				Help:    "Time spent executing one batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"table"},
		),
		RowsBackfilled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graftseed_rows_backfilled_total",
				Help: "Rows whose deferred foreign keys were set by the backfill pass",
			},
			[]string{"table"},
		),
		TablesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graftseed_tables_failed_total",
				Help: "Tables that could not be fully seeded",
			},
			[]string{"table"},
		),
		RunDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "graftseed_run_duration_seconds",
				Help: "Wall time of the run by final state",
			},
			[]string{"state"},
		),
	}
	c.registry.MustRegister(
		c.RowsInserted,
		c.Batches,
		c.BatchDuration,
		c.RowsBackfilled,
		c.TablesFailed,
		c.RunDuration,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveBatch records one batch attempt. rows counts only when status is StatusOK.
func (c *Collector) ObserveBatch(table, status string, rows int, d time.Duration) {
	if c == nil {
		return
	}
	c.Batches.WithLabelValues(table, status).Inc()
	c.BatchDuration.WithLabelValues(table).Observe(d.Seconds())
	if status == StatusOK && rows > 0 {
		c.RowsInserted.WithLabelValues(table).Add(float64(rows))
	}
}

func (c *Collector) ObserveBackfill(table string, rows int) {
	if c == nil || rows <= 0 {
		return
	}
	c.RowsBackfilled.WithLabelValues(table).Add(float64(rows))
}

func (c *Collector) TableFailed(table string) {
	if c == nil {
		return
	}
	c.TablesFailed.WithLabelValues(table).Inc()
}

func (c *Collector) RunFinished(state string, d time.Duration) {
	if c == nil {
		return
	}
	c.RunDuration.WithLabelValues(state).Set(d.Seconds())
}

// WriteFile writes every collected series in the text exposition format,
// for node_exporter's textfile collector or a CI artifact.
func (c *Collector) WriteFile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
