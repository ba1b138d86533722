package seeder

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Rana718/graftseed/internal/catalog"
	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/generator"
	"github.com/Rana718/graftseed/internal/metrics"
	"github.com/Rana718/graftseed/internal/types"
)

// backfill sets every deferred foreign key now that all pools are complete.
func (r *run) backfill(ctx context.Context) error {
	r.info("🔁 Backfilling %d deferred relations", len(r.plan.Deferred))
	for _, e := range r.plan.Deferred {
		t, ok := r.plan.Catalog.Table(e.From)
		if !ok {
			continue
		}
		for _, fk := range e.ForeignKeys {
			err := r.backfillFK(ctx, t, fk)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if tr := r.report.Table(t.Name); tr != nil {
				tr.Error = err.Error()
			}
			r.report.addFailure(t.Name, PhaseBackfilling, err)
			r.opts.Metrics.TableFailed(t.Name)
			if r.opts.OnTableError == Skip {
				r.warn("⚠️  Skipping backfill of %s.%s: %v", t.Name, fk.Name, err)
				continue
			}
			r.failure("❌ %v", err)
			return err
		}
	}
	return nil
}

// picker chooses referenced pool rows for the rows of a table.
type picker struct {
	rng    *rand.Rand
	size   int
	self   bool
	unique bool
	order  []int
	next   int
}

func newPicker(rng *rand.Rand, size int, self, unique bool) *picker {
	p := &picker{rng: rng, size: size, self: self, unique: unique}
	if unique {
		p.order = rng.Perm(size)
	}
	return p
}

// pick returns a referenced row for own row i, never i itself on a self
// reference. Unique references consume candidates without replacement.
func (p *picker) pick(i int) (int, bool) {
	if p.unique {
		for k := p.next; k < len(p.order); k++ {
			j := p.order[k]
			if p.self && j == i {
				continue
			}
			p.order[k], p.order[p.next] = p.order[p.next], p.order[k]
			p.next++
			return j, true
		}
		return 0, false
	}

	n := p.size
	if p.self {
		n--
	}
	if n <= 0 {
		return 0, false
	}
	j := p.rng.Intn(n)
	if p.self && j >= i {
		j++
	}
	return j, true
}

// uniqueReference reports whether fk's columns are covered by a primary key
// or unique constraint, so no two rows may share a target.
func uniqueReference(t *catalog.Table, fk catalog.ForeignKey) bool {
	in := make(map[string]bool, len(fk.Columns))
	for _, c := range fk.Columns {
		in[c] = true
	}
	covered := func(cols []string) bool {
		if len(cols) == 0 {
			return false
		}
		for _, c := range cols {
			if !in[c] {
				return false
			}
		}
		return true
	}
	if covered(t.PrimaryKey) {
		return true
	}
	for _, u := range t.Uniques {
		if covered(u.Columns) {
			return true
		}
	}
	return false
}

func (r *run) backfillFK(ctx context.Context, t *catalog.Table, fk catalog.ForeignKey) error {
	own := r.pools[t.Name]
	ref := r.pools[fk.RefTable]
	if own.Len() == 0 {
		return nil
	}

	p := newPicker(r.rngFor(t.Name+"."+fk.Name), ref.Len(), fk.RefTable == t.Name, uniqueReference(t, fk))
	rows := make([]types.UpdateRow, 0, own.Len())
	for i := 0; i < own.Len(); i++ {
		j, ok := p.pick(i)
		if !ok {
			if fk.Nullable {
				continue
			}
			return &BackfillError{
				Table: t.Name, ForeignKey: fk.Name, Columns: fk.Columns, RefTable: fk.RefTable,
				Reason: fmt.Sprintf("no row of %s left to reference from row %d", fk.RefTable, i),
			}
		}
		rows = append(rows, types.UpdateRow{Key: keyOf(own, t.PrimaryKey, i), Values: keyOf(ref, fk.RefColumns, j)})
	}

	tr := r.report.Table(t.Name)
	for start, batchIdx := 0, 0; start < len(rows); start, batchIdx = start+r.opts.BatchSize, batchIdx+1 {
		end := start + r.opts.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := types.UpdateBatch{
			Table:      t.Name,
			KeyColumns: t.PrimaryKey,
			SetColumns: fk.Columns,
			Rows:       rows[start:end],
		}
		if err := r.updateWithRetry(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return err
			}
			return &BackfillError{Table: t.Name, ForeignKey: fk.Name, Columns: fk.Columns, RefTable: fk.RefTable, Batch: batchIdx, Err: err}
		}
		if tr != nil {
			tr.Backfilled += end - start
		}
		r.opts.Metrics.ObserveBackfill(t.Name, end-start)
	}
	r.success("  ✅ %s.%s backfilled (%d rows)", t.Name, fk.Name, len(rows))
	return nil
}

func keyOf(pool *generator.Pool, cols []string, i int) []interface{} {
	out := make([]interface{}, len(cols))
	for k, c := range cols {
		out[k] = pool.Value(i, c)
	}
	return out
}

// updateWithRetry retries transient failures. Constraint violations fail at once.
func (r *run) updateWithRetry(ctx context.Context, batch types.UpdateBatch) error {
	var lastErr error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, r.opts.backoff(attempt)); err != nil {
				return err
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := r.target.UpdateBatch(context.WithoutCancel(ctx), batch)
		if err == nil {
			return nil
		}
		lastErr = err
		r.opts.Metrics.ObserveBatch(batch.Table, metrics.StatusRetry, 0, time.Since(start))
		if errors.Is(err, common.ErrConstraint) {
			break
		}
	}
	return lastErr
}
