package seeder

import (
	"fmt"
	"time"

	"github.com/Rana718/graftseed/internal/metrics"
)

// ErrorPolicy decides what a table-scoped failure does to the run.
type ErrorPolicy string

const (
	// Abort stops issuing batches, drains in-flight work and fails the run.
	Abort ErrorPolicy = "abort"
	// Skip records the failure and keeps seeding the remaining tables.
	Skip ErrorPolicy = "skip"
)

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "", Abort:
		return Abort, nil
	case Skip:
		return Skip, nil
	}
	return "", fmt.Errorf("unknown table error policy %q (expected %q or %q)", s, Abort, Skip)
}

// ProgressFunc receives (table, rows completed, rows total). It is called
// from concurrent workers.
type ProgressFunc func(table string, done, total int)

type Options struct {
	BatchSize   int
	Concurrency int
	// RngSeed makes a run reproducible. Zero picks a seed from the clock;
	// the seed used is recorded in the report.
	RngSeed int64
	// MaxRetries is the number of resends after a failed batch. Zero means
	// the default; a negative value disables retries.
	MaxRetries        int
	RetryBackoff      time.Duration
	MaxBackoff        time.Duration
	UniquenessRetries int
	NullRatio         float64
	OnTableError      ErrorPolicy
	// BatchesPerSecond throttles batch submission across all workers. Zero disables it.
	BatchesPerSecond float64
	// ExternalKeyLimit caps the keys read back from each skipped table.
	ExternalKeyLimit int
	DryRun           bool
	Quiet            bool
	Progress         ProgressFunc
	Metrics          *metrics.Collector
	// Now anchors generated dates; zero means the run's start time.
	Now time.Time
}

func DefaultOptions() Options {
	return Options{
		BatchSize:         500,
		Concurrency:       4,
		MaxRetries:        3,
		RetryBackoff:      200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		UniquenessRetries: 50,
		NullRatio:         0.2,
		OnTableError:      Abort,
		ExternalKeyLimit:  10000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = d.MaxRetries
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = d.RetryBackoff
	}
	if o.MaxBackoff < o.RetryBackoff {
		o.MaxBackoff = d.MaxBackoff
		if o.MaxBackoff < o.RetryBackoff {
			o.MaxBackoff = o.RetryBackoff
		}
	}
	if o.UniquenessRetries <= 0 {
		o.UniquenessRetries = d.UniquenessRetries
	}
	if o.OnTableError == "" {
		o.OnTableError = Abort
	}
	if o.ExternalKeyLimit <= 0 {
		o.ExternalKeyLimit = d.ExternalKeyLimit
	}
	return o
}

// backoff is the wait before retry attempt n (1-based).
func (o Options) backoff(n int) time.Duration {
	d := o.RetryBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= o.MaxBackoff {
			return o.MaxBackoff
		}
	}
	return d
}
