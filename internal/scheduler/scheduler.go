// Package scheduler linearizes a dependency graph into insertion waves,
// breaking cycles by deferring nullable edges.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Rana718/graftseed/internal/graph"
)

// ErrCycle matches every CycleError.
var ErrCycle = errors.New("schema cycle")

// CycleError names a dependency cycle that cannot be broken.
type CycleError struct {
	Tables []string
	Edges  []*graph.Edge
	Reason string
}

func (e *CycleError) Error() string {
	edges := make([]string, len(e.Edges))
	for i, edge := range e.Edges {
		edges[i] = edge.String()
	}
	return fmt.Sprintf("schema cycle [phase=scheduling] between tables %s (%s): %s",
		strings.Join(e.Tables, ", "), strings.Join(edges, ", "), e.Reason)
}

func (e *CycleError) Unwrap() error { return ErrCycle }

type DeferStrategy string

const (
	// DeferLexical defers the candidate edge with the smallest From→To pair.
	DeferLexical DeferStrategy = "lexical"
	// DeferMinRows defers the candidate whose dependent table has the fewest
	// rows to seed, keeping the backfill pass small.
	DeferMinRows DeferStrategy = "min-rows"
)

func ParseDeferStrategy(s string) (DeferStrategy, error) {
	switch DeferStrategy(s) {
	case "", DeferLexical:
		return DeferLexical, nil
	case DeferMinRows:
		return DeferMinRows, nil
	}
	return "", fmt.Errorf("unknown defer strategy %q (expected %q or %q)", s, DeferLexical, DeferMinRows)
}

type Options struct {
	Strategy DeferStrategy
	// RowCounts feeds DeferMinRows; missing tables count as zero.
	RowCounts map[string]int
	// Addressable reports whether rows of a table can be updated later by key.
	// A nil func treats every table as addressable.
	Addressable func(table string) bool
}

type Wave struct {
	Index  int
	Tables []string
}

type Schedule struct {
	Waves []Wave
	// Deferred holds copies of the edges retagged graph.Deferred, in the order they were broken.
	Deferred []*graph.Edge
	waveOf   map[string]int
}

// WaveOf returns the wave index a table was scheduled in.
func (s *Schedule) WaveOf(table string) (int, bool) {
	i, ok := s.waveOf[table]
	return i, ok
}

// IsDeferred reports whether the from→to edge was deferred.
func (s *Schedule) IsDeferred(from, to string) bool {
	for _, e := range s.Deferred {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// Order flattens the waves into one insertion order.
func (s *Schedule) Order() []string {
	var order []string
	for _, w := range s.Waves {
		order = append(order, w.Tables...)
	}
	return order
}

type scheduler struct {
	g         *graph.DependencyGraph
	opts      Options
	tags      map[*graph.Edge]graph.EdgeTag
	scheduled map[string]int
}

// Build computes the waves for g. The graph itself is never mutated.
func Build(g *graph.DependencyGraph, opts Options) (*Schedule, error) {
	if opts.Strategy == "" {
		opts.Strategy = DeferLexical
	}
	s := &scheduler{
		g:         g,
		opts:      opts,
		tags:      make(map[*graph.Edge]graph.EdgeTag),
		scheduled: make(map[string]int),
	}
	for _, e := range g.Edges() {
		s.tags[e] = e.Tag
	}

	sched := &Schedule{waveOf: s.scheduled}
	remaining := g.Nodes()

	for len(remaining) > 0 {
		var ready, blocked []string
		for _, table := range remaining {
			if s.ready(table) {
				ready = append(ready, table)
			} else {
				blocked = append(blocked, table)
			}
		}

		if len(ready) == 0 {
			deferred, err := s.breakCycle(blocked)
			if err != nil {
				return nil, err
			}
			sched.Deferred = append(sched.Deferred, deferred)
			continue
		}

		idx := len(sched.Waves)
		for _, table := range ready {
			s.scheduled[table] = idx
		}
		sched.Waves = append(sched.Waves, Wave{Index: idx, Tables: ready})
		remaining = blocked
	}
	return sched, nil
}

func (s *scheduler) blocking(e *graph.Edge) bool {
	tag := s.tags[e]
	return tag == graph.Required || tag == graph.Nullable
}

func (s *scheduler) ready(table string) bool {
	for _, e := range s.g.EdgesFrom(table) {
		if !s.blocking(e) {
			continue
		}
		if _, done := s.scheduled[e.To]; !done {
			return false
		}
	}
	return true
}

// findCycle walks blocking edges from the lexically first blocked table,
// always taking the lexically first unscheduled target. Every blocked table
// has such a target, so the walk must revisit a table.
func (s *scheduler) findCycle(blocked []string) []*graph.Edge {
	pos := make(map[string]int)
	var path []*graph.Edge
	cur := blocked[0]
	for {
		pos[cur] = len(path)
		var next *graph.Edge
		for _, e := range s.g.EdgesFrom(cur) {
			if !s.blocking(e) {
				continue
			}
			if _, done := s.scheduled[e.To]; done {
				continue
			}
			next = e
			break
		}
		if next == nil {
			// Unreachable while the graph is consistent with blocked.
			return path
		}
		path = append(path, next)
		if start, seen := pos[next.To]; seen {
			return path[start:]
		}
		cur = next.To
	}
}

func (s *scheduler) breakCycle(blocked []string) (*graph.Edge, error) {
	cycle := s.findCycle(blocked)

	var candidates []*graph.Edge
	for _, e := range cycle {
		if s.tags[e] != graph.Nullable {
			continue
		}
		if s.opts.Addressable != nil && !s.opts.Addressable(e.From) {
			continue
		}
		candidates = append(candidates, e)
	}

	if len(candidates) == 0 {
		tables := make([]string, 0, len(cycle))
		edges := make([]*graph.Edge, 0, len(cycle))
		for _, e := range cycle {
			tables = append(tables, e.From)
			cp := *e
			cp.Tag = s.tags[e]
			edges = append(edges, &cp)
		}
		reason := "every edge is backed by a NOT NULL foreign key"
		for _, e := range edges {
			if e.Tag == graph.Nullable {
				reason = "nullable edges belong to tables without a primary key, so they cannot be backfilled"
				break
			}
		}
		sort.Strings(tables)
		return nil, &CycleError{Tables: tables, Edges: edges, Reason: reason}
	}

	chosen := s.pick(candidates)
	s.tags[chosen] = graph.Deferred
	cp := *chosen
	cp.Tag = graph.Deferred
	return &cp, nil
}

func (s *scheduler) pick(candidates []*graph.Edge) *graph.Edge {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if s.opts.Strategy == DeferMinRows {
			ra, rb := s.opts.RowCounts[a.From], s.opts.RowCounts[b.From]
			if ra != rb {
				return ra < rb
			}
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	return candidates[0]
}
