// Package plan turns a catalog and a seed request into the ordered, compiled
// plan the seeder executes.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rana718/graftseed/internal/catalog"
	"github.com/Rana718/graftseed/internal/generator"
	"github.com/Rana718/graftseed/internal/graph"
	"github.com/Rana718/graftseed/internal/scheduler"
)

// Request says how much to seed and how.
type Request struct {
	RowsPerTable  int
	Tables        map[string]int
	Overrides     map[string]map[string]generator.Override
	DataPools     generator.DataPools
	SkipTables    []string
	DeferStrategy scheduler.DeferStrategy
}

type TablePlan struct {
	Name string
	Rows int
	Wave int
	Spec *generator.TableSpec
}

// SeedPlan is computed once per run and read-only afterwards.
type SeedPlan struct {
	Catalog  *catalog.Catalog
	Graph    *graph.DependencyGraph
	Waves    []scheduler.Wave
	Deferred []*graph.Edge
	Tables   map[string]*TablePlan
	// External tables are skipped but referenced; their existing keys are loaded.
	External []string
	Skipped  []string
	// Keys lists the tracked key columns per table, seeded and external.
	Keys map[string][]string
}

// Build validates req against c and compiles the plan.
func Build(c *catalog.Catalog, req Request) (*SeedPlan, error) {
	if req.RowsPerTable < 0 {
		return nil, fmt.Errorf("rows per table must not be negative, got %d", req.RowsPerTable)
	}
	for name, n := range req.Tables {
		if _, err := c.Lookup(name); err != nil {
			return nil, fmt.Errorf("row counts: %w", err)
		}
		if n < 0 {
			return nil, fmt.Errorf("row count for %s must not be negative, got %d", name, n)
		}
	}
	for name := range req.Overrides {
		if _, err := c.Lookup(name); err != nil {
			return nil, fmt.Errorf("overrides: %w", err)
		}
	}

	sub, external, err := c.Without(req.SkipTables)
	if err != nil {
		return nil, fmt.Errorf("skip tables: %w", err)
	}
	for _, name := range req.SkipTables {
		if _, ok := req.Overrides[name]; ok {
			return nil, fmt.Errorf("overrides given for skipped table %s", name)
		}
	}

	rows := make(map[string]int, sub.Len())
	for _, name := range sub.Names() {
		rows[name] = req.RowsPerTable
		if n, ok := req.Tables[name]; ok {
			rows[name] = n
		}
	}

	g := graph.Build(sub)
	sched, err := scheduler.Build(g, scheduler.Options{
		Strategy:  req.DeferStrategy,
		RowCounts: rows,
		Addressable: func(table string) bool {
			t, ok := sub.Table(table)
			return ok && len(t.PrimaryKey) > 0
		},
	})
	if err != nil {
		return nil, err
	}

	deferred := make(map[string]map[string]bool)
	for _, e := range sched.Deferred {
		if deferred[e.From] == nil {
			deferred[e.From] = make(map[string]bool)
		}
		for _, fk := range e.ForeignKeys {
			deferred[e.From][fk.Name] = true
		}
	}

	p := &SeedPlan{
		Catalog:  sub,
		Graph:    g,
		Waves:    sched.Waves,
		Deferred: sched.Deferred,
		Tables:   make(map[string]*TablePlan, sub.Len()),
		External: external,
		Skipped:  append([]string(nil), req.SkipTables...),
		Keys:     make(map[string][]string),
	}
	sort.Strings(p.Skipped)

	for _, name := range external {
		p.Keys[name] = sub.KeyColumns(name)
	}
	for _, t := range sub.Tables() {
		keys := sub.KeyColumns(t.Name)
		p.Keys[t.Name] = keys

		spec, err := generator.Compile(t, generator.CompileOptions{
			Tracked:   keys,
			Deferred:  deferred[t.Name],
			Overrides: req.Overrides[t.Name],
			DataPools: req.DataPools,
		})
		if err != nil {
			return nil, err
		}
		wave, _ := sched.WaveOf(t.Name)
		p.Tables[t.Name] = &TablePlan{Name: t.Name, Rows: rows[t.Name], Wave: wave, Spec: spec}
	}
	return p, nil
}

// Order is the flattened insertion order.
func (p *SeedPlan) Order() []string {
	var order []string
	for _, w := range p.Waves {
		order = append(order, w.Tables...)
	}
	return order
}

func (p *SeedPlan) TotalRows() int {
	total := 0
	for _, tp := range p.Tables {
		total += tp.Rows
	}
	return total
}

// NewPools returns empty key pools for every seeded and external table.
func (p *SeedPlan) NewPools() generator.Pools {
	pools := make(generator.Pools, len(p.Keys))
	for name, cols := range p.Keys {
		pools[name] = generator.NewPool(cols)
	}
	return pools
}

// Summary renders the plan for the terminal.
func (p *SeedPlan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Seed plan: %d tables, %d rows, %d waves\n", len(p.Tables), p.TotalRows(), len(p.Waves))
	for _, w := range p.Waves {
		parts := make([]string, 0, len(w.Tables))
		for _, name := range w.Tables {
			parts = append(parts, fmt.Sprintf("%s (%d)", name, p.Tables[name].Rows))
		}
		fmt.Fprintf(&b, "  wave %d: %s\n", w.Index+1, strings.Join(parts, ", "))
	}
	if len(p.Deferred) > 0 {
		b.WriteString("Deferred foreign keys (backfilled after all waves):\n")
		for _, e := range p.Deferred {
			names := make([]string, 0, len(e.ForeignKeys))
			for _, fk := range e.ForeignKeys {
				names = append(names, fk.Name)
			}
			fmt.Fprintf(&b, "  %s→%s via %s\n", e.From, e.To, strings.Join(names, ", "))
		}
	}
	if len(p.External) > 0 {
		fmt.Fprintf(&b, "Existing keys reused from: %s\n", strings.Join(p.External, ", "))
	}
	if len(p.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped: %s\n", strings.Join(p.Skipped, ", "))
	}
	fmt.Fprintf(&b, "Order: %s\n", strings.Join(p.Order(), " → "))
	return b.String()
}

// Details lists each table's generator choice per column, in plan order.
func (p *SeedPlan) Details() string {
	var b strings.Builder
	for _, name := range p.Order() {
		tp := p.Tables[name]
		fmt.Fprintf(&b, "%s (%d rows)\n", name, tp.Rows)
		for _, ck := range tp.Spec.Kinds() {
			fmt.Fprintf(&b, "  %-24s %s\n", ck.Column, ck.Kind)
		}
		if len(tp.Spec.Returning) > 0 {
			fmt.Fprintf(&b, "  returning: %s\n", strings.Join(tp.Spec.Returning, ", "))
		}
	}
	return b.String()
}
