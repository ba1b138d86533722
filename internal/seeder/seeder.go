// Package seeder executes a seed plan wave by wave against a database adapter.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Rana718/graftseed/internal/catalog"
	"github.com/Rana718/graftseed/internal/database"
	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/database/memory"
	"github.com/Rana718/graftseed/internal/generator"
	"github.com/Rana718/graftseed/internal/metrics"
	"github.com/Rana718/graftseed/internal/plan"
	"github.com/Rana718/graftseed/internal/types"
	"github.com/cespare/xxhash/v2"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Seeder runs one seed at a time; use separate Seeders for concurrent runs.
type Seeder struct {
	adapter database.DatabaseAdapter
	opts    Options

	mu    sync.Mutex
	state State
}

func New(adapter database.DatabaseAdapter, opts Options) *Seeder {
	return &Seeder{
		adapter: adapter,
		opts:    opts.withDefaults(),
		state:   State{Phase: PhaseIdle},
	}
}

// run is the mutable state of one Execute call.
type run struct {
	*Seeder
	plan    *plan.SeedPlan
	target  database.DatabaseAdapter
	mem     *memory.Adapter
	pools   generator.Pools
	report  *Report
	limiter *rate.Limiter
	seed    int64
	now     time.Time
}

// Run introspects the database, plans req and executes the plan.
func (s *Seeder) Run(ctx context.Context, req plan.Request) (*Report, error) {
	s.setState(State{Phase: PhaseBuilding})
	schema, err := s.adapter.GetCurrentSchema(ctx)
	if err != nil {
		return s.failEarly(PhaseBuilding, &catalog.SchemaError{Reason: "cannot read schema", Err: err})
	}
	c, err := catalog.New(schema)
	if err != nil {
		return s.failEarly(PhaseBuilding, err)
	}
	if c.Len() == 0 {
		s.warn("⚠️  No tables found in schema")
	}

	s.setState(State{Phase: PhaseScheduling})
	p, err := plan.Build(c, req)
	if err != nil {
		return s.failEarly(PhaseScheduling, err)
	}
	return s.Execute(ctx, p)
}

func (s *Seeder) failEarly(phase Phase, err error) (*Report, error) {
	report := newReport(nil, s.opts.RngSeed, s.opts.DryRun)
	st := State{Phase: PhaseFailed, Reason: err.Error()}
	report.finish(st)
	s.setState(st)
	return report, &RunError{Phase: phase, Cause: err, Report: report}
}

// Execute seeds p. The returned report is never nil.
func (s *Seeder) Execute(ctx context.Context, p *plan.SeedPlan) (*Report, error) {
	seed := s.opts.RngSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &run{
		Seeder: s,
		plan:   p,
		target: s.adapter,
		pools:  p.NewPools(),
		report: newReport(p, seed, s.opts.DryRun),
		seed:   seed,
		now:    s.opts.Now,
	}
	if r.now.IsZero() {
		r.now = time.Now().UTC().Truncate(time.Second)
	}
	if s.opts.BatchesPerSecond > 0 {
		burst := int(s.opts.BatchesPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(s.opts.BatchesPerSecond), burst)
	}
	if s.opts.DryRun {
		r.mem = database.NewDryRun(p.Catalog.Schema(), s.adapter.MaxConns())
		r.target = r.mem
		s.info("🧪 Dry run: rows are checked in memory, nothing is written")
	}

	s.info("🌱 Seeding %d tables in %d waves", len(p.Tables), len(p.Waves))

	if err := r.preloadExternal(ctx); err != nil {
		return r.fail(PhaseSeeding, err)
	}

	for i, wave := range p.Waves {
		s.setState(State{Phase: PhaseSeeding, Wave: i + 1, Waves: len(p.Waves)})
		if err := r.seedWave(ctx, wave.Tables); err != nil {
			return r.fail(PhaseSeeding, err)
		}
	}

	if len(p.Deferred) > 0 {
		s.setState(State{Phase: PhaseBackfilling})
		if err := r.backfill(ctx); err != nil {
			return r.fail(PhaseBackfilling, err)
		}
	}

	st := State{Phase: PhaseDone}
	if len(r.report.Failures) > 0 {
		st.Reason = fmt.Sprintf("%d tables skipped after errors", len(r.report.Failures))
	}
	r.report.finish(st)
	s.setState(st)
	s.opts.Metrics.RunFinished(string(PhaseDone), r.report.Elapsed)
	s.success("✅ Seeded %d rows in %s", r.report.Inserted(), r.report.Elapsed.Round(time.Millisecond))
	return r.report, nil
}

func (r *run) fail(phase Phase, err error) (*Report, error) {
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	reason := err.Error()
	if cancelled {
		reason = "cancelled"
	}
	st := State{Phase: PhaseFailed, Reason: reason}
	r.report.finish(st)
	r.setState(st)
	r.opts.Metrics.RunFinished(string(PhaseFailed), r.report.Elapsed)
	return r.report, &RunError{Phase: phase, Cause: err, Cancelled: cancelled, Report: r.report}
}

// preloadExternal fills the pools of skipped-but-referenced tables with keys
// already in the database.
func (r *run) preloadExternal(ctx context.Context) error {
	for _, name := range r.plan.External {
		cols := r.plan.Keys[name]
		if len(cols) == 0 {
			continue
		}
		keys, err := r.adapter.FetchKeys(ctx, name, cols, r.opts.ExternalKeyLimit)
		if err != nil {
			return fmt.Errorf("failed to read existing keys of %s: %w", name, err)
		}
		pool := r.pools[name]
		for _, row := range keys.Rows {
			pool.Add(row)
		}
		if r.mem != nil {
			rows := make([]map[string]interface{}, len(keys.Rows))
			for i, row := range keys.Rows {
				m := make(map[string]interface{}, len(cols))
				for j, c := range cols {
					m[c] = row[j]
				}
				rows[i] = m
			}
			if err := r.mem.Load(name, rows); err != nil {
				return err
			}
		}
		r.info("🔗 Reusing %d existing keys from %s", pool.Len(), name)
	}
	return nil
}

func (r *run) seedWave(ctx context.Context, tables []string) error {
	limit := r.opts.Concurrency
	if n := r.target.MaxConns(); n > 0 && n < limit {
		limit = n
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, name := range tables {
		tp := r.plan.Tables[name]
		g.Go(func() error {
			return r.runTable(ctx, gctx, tp)
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// runTable seeds one table and applies the error policy. parent is the
// run context, ctx the wave's.
func (r *run) runTable(parent, ctx context.Context, tp *plan.TablePlan) error {
	tr := r.report.Table(tp.Name)
	start := time.Now()
	tr.State = TableSeeding
	err := r.seedTable(ctx, tp, tr)
	tr.Elapsed = time.Since(start)

	switch {
	case err == nil:
		tr.State = TableDone
		return nil
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		// Stopped because the run was cancelled or a sibling failed.
		tr.State = TableCancelled
		if parent.Err() != nil {
			return parent.Err()
		}
		return err
	}

	tr.Error = err.Error()
	r.report.addFailure(tp.Name, PhaseSeeding, err)
	r.opts.Metrics.TableFailed(tp.Name)
	if r.opts.OnTableError == Skip {
		tr.State = TableSkipped
		r.warn("⚠️  Skipping %s: %v", tp.Name, err)
		return nil
	}
	tr.State = TableFailed
	r.failure("❌ %s: %v", tp.Name, err)
	return err
}

func (r *run) rngFor(table string) *rand.Rand {
	return rand.New(rand.NewSource(r.seed ^ int64(xxhash.Sum64String(table))))
}

func (r *run) seedTable(ctx context.Context, tp *plan.TablePlan, tr *TableReport) error {
	if tp.Rows == 0 {
		return nil
	}
	spec := tp.Spec
	gen := generator.New(spec, r.pools, r.rngFor(tp.Name), generator.Options{
		NullRatio:         r.opts.NullRatio,
		UniquenessRetries: r.opts.UniquenessRetries,
		Now:               r.now,
	})

	if spec.Sequence != "" {
		max, err := r.target.MaxValue(ctx, tp.Name, spec.Sequence)
		if err != nil {
			return fmt.Errorf("failed to read max %s.%s: %w", tp.Name, spec.Sequence, err)
		}
		gen.StartSequenceAfter(max)
	}

	r.info("  📝 Seeding %s (%d records)...", tp.Name, tp.Rows)
	for batchIdx := 0; tr.Inserted < tp.Rows; batchIdx++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := tp.Rows - tr.Inserted
		if n > r.opts.BatchSize {
			n = r.opts.BatchSize
		}
		// Rows without writable columns go one per statement. A self reference
		// to database-assigned keys needs the first key committed before any
		// later row can point at it.
		if len(spec.Columns) == 0 || (spec.SelfRef && !spec.MintedKeys() && tr.Inserted == 0) {
			n = 1
		}

		batch, err := r.insertWithRetry(ctx, gen, tr, batchIdx, n)
		if err != nil {
			return err
		}
		tr.Inserted += batch.Len()
		if r.opts.Progress != nil {
			r.opts.Progress(tp.Name, tr.Inserted, tp.Rows)
		}
	}
	r.success("  ✅ %s seeded (%d rows)", tp.Name, tr.Inserted)
	return nil
}

// insertWithRetry generates and commits one batch. Transient errors resend
// the same rows; a constraint violation regenerates them first, since the
// same rows would fail again.
func (r *run) insertWithRetry(ctx context.Context, gen *generator.Generator, tr *TableReport, batchIdx, n int) (*generator.Batch, error) {
	spec := gen.Spec()
	batch, err := gen.Next(n)
	if err != nil {
		return nil, err
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			tr.Retries++
			if err := sleep(ctx, r.opts.backoff(attempt)); err != nil {
				return nil, err
			}
			if errors.Is(lastErr, common.ErrConstraint) {
				if batch, err = gen.Next(n); err != nil {
					return nil, err
				}
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempts++
		tr.Batches++
		start := time.Now()
		// An issued batch runs to completion even if the run is cancelled.
		returned, err := r.target.InsertBatch(context.WithoutCancel(ctx), types.InsertBatch{
			Table:     spec.Table,
			Columns:   spec.Columns,
			Rows:      batch.Rows,
			Returning: spec.Returning,
		})
		if err == nil {
			if err := gen.Commit(batch, returned); err != nil {
				return nil, &TableSeedError{Table: spec.Table, Batch: batchIdx, Attempts: attempts, Err: err}
			}
			r.opts.Metrics.ObserveBatch(spec.Table, metrics.StatusOK, batch.Len(), time.Since(start))
			return batch, nil
		}
		lastErr = err
		status := metrics.StatusRetry
		if attempt == r.opts.MaxRetries {
			status = metrics.StatusFailed
		}
		r.opts.Metrics.ObserveBatch(spec.Table, status, 0, time.Since(start))
	}
	return nil, &TableSeedError{Table: spec.Table, Batch: batchIdx, Attempts: attempts, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Seeder) info(format string, args ...interface{}) {
	if !s.opts.Quiet {
		color.Cyan(format, args...)
	}
}

func (s *Seeder) success(format string, args ...interface{}) {
	if !s.opts.Quiet {
		color.Green(format, args...)
	}
}

func (s *Seeder) warn(format string, args ...interface{}) {
	if !s.opts.Quiet {
		color.Yellow(format, args...)
	}
}

func (s *Seeder) failure(format string, args ...interface{}) {
	if !s.opts.Quiet {
		color.Red(format, args...)
	}
}
