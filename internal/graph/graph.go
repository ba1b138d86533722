// Package graph turns a catalog into a tagged foreign-key dependency graph.
package graph

import (
	"fmt"
	"sort"

	"github.com/Rana718/graftseed/internal/catalog"
)

type EdgeTag int

const (
	// Required edges come from at least one NOT NULL FK column.
	Required EdgeTag = iota
	// Nullable edges come only from nullable FK columns.
	Nullable
	// Self edges point a table at itself and never block scheduling.
	Self
	// Deferred edges are nullable edges left unset during the main pass and backfilled.
	Deferred
)

func (t EdgeTag) String() string {
	switch t {
	case Required:
		return "required"
	case Nullable:
		return "nullable"
	case Self:
		return "self"
	case Deferred:
		return "deferred"
	default:
		return fmt.Sprintf("EdgeTag(%d)", int(t))
	}
}

// Edge From→To means From holds FKs into To and depends on it.
type Edge struct {
	From        string
	To          string
	Tag         EdgeTag
	ForeignKeys []catalog.ForeignKey
}

func (e *Edge) String() string {
	return fmt.Sprintf("%s→%s (%s)", e.From, e.To, e.Tag)
}

// Blocking reports whether the edge constrains wave ordering.
func (e *Edge) Blocking() bool {
	return e.Tag == Required || e.Tag == Nullable
}

type DependencyGraph struct {
	nodes []string
	out   map[string]map[string]*Edge
}

// Build creates one edge per referencing/referenced table pair. FKs into
// external tables produce no edge.
func Build(c *catalog.Catalog) *DependencyGraph {
	g := &DependencyGraph{
		nodes: c.Names(),
		out:   make(map[string]map[string]*Edge, c.Len()),
	}
	for _, n := range g.nodes {
		g.out[n] = make(map[string]*Edge)
	}

	for _, t := range c.Tables() {
		for _, fk := range t.ForeignKeys {
			if c.IsExternal(fk.RefTable) {
				continue
			}
			e, ok := g.out[t.Name][fk.RefTable]
			if !ok {
				e = &Edge{From: t.Name, To: fk.RefTable, Tag: Nullable}
				g.out[t.Name][fk.RefTable] = e
			}
			e.ForeignKeys = append(e.ForeignKeys, fk)
			switch {
			case fk.Self(t.Name):
				e.Tag = Self
			case !fk.Nullable:
				e.Tag = Required
			}
		}
	}
	return g
}

// Nodes returns table names in lexical order.
func (g *DependencyGraph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

func (g *DependencyGraph) Edge(from, to string) (*Edge, bool) {
	e, ok := g.out[from][to]
	return e, ok
}

// EdgesFrom returns the outgoing edges of a table sorted by target.
func (g *DependencyGraph) EdgesFrom(table string) []*Edge {
	targets := make([]string, 0, len(g.out[table]))
	for to := range g.out[table] {
		targets = append(targets, to)
	}
	sort.Strings(targets)
	edges := make([]*Edge, 0, len(targets))
	for _, to := range targets {
		edges = append(edges, g.out[table][to])
	}
	return edges
}

// Edges returns every edge ordered by (From, To).
func (g *DependencyGraph) Edges() []*Edge {
	var edges []*Edge
	for _, n := range g.nodes {
		edges = append(edges, g.EdgesFrom(n)...)
	}
	return edges
}
