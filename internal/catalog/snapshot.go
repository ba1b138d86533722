package catalog

import (
	"fmt"
	"os"
	"time"

	"github.com/Rana718/graftseed/internal/types"
	"gopkg.in/yaml.v3"
)

const snapshotVersion = 1

type snapshot struct {
	Version  int                 `yaml:"version"`
	Provider string              `yaml:"provider,omitempty"`
	TakenAt  time.Time           `yaml:"taken_at"`
	Tables   []types.SchemaTable `yaml:"tables"`
}

// Schema returns the introspected tables the catalog was built from.
func (c *Catalog) Schema() []types.SchemaTable {
	out := make([]types.SchemaTable, len(c.source))
	copy(out, c.source)
	return out
}

// Save writes the catalog as a YAML snapshot that Load can read back
// instead of introspecting a live database.
func (c *Catalog) Save(path, provider string) error {
	data, err := yaml.Marshal(snapshot{
		Version:  snapshotVersion,
		Provider: provider,
		TakenAt:  time.Now().UTC().Truncate(time.Second),
		Tables:   c.source,
	})
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog %s: %w", path, err)
	}
	return nil
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SchemaError{Reason: "cannot read catalog snapshot " + path, Err: err}
	}
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, &SchemaError{Reason: "cannot parse catalog snapshot " + path, Err: err}
	}
	if snap.Version != snapshotVersion {
		return nil, &SchemaError{Reason: fmt.Sprintf("unsupported catalog snapshot version %d", snap.Version)}
	}
	return New(snap.Tables)
}

// Without returns a catalog restricted to tables not listed in skip, plus the
// names of skipped tables still referenced by a kept table. References into
// skipped tables stay on the kept tables' FKs.
func (c *Catalog) Without(skip []string) (*Catalog, []string, error) {
	if len(skip) == 0 {
		return c, nil, nil
	}
	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		if _, err := c.Lookup(name); err != nil {
			return nil, nil, err
		}
		skipped[name] = true
	}

	sub := &Catalog{tables: make(map[string]*Table), source: c.source, external: make(map[string]bool)}
	external := make(map[string]bool)
	for _, name := range c.names {
		if skipped[name] {
			continue
		}
		t := c.tables[name]
		sub.tables[name] = t
		sub.names = append(sub.names, name)
		for _, fk := range t.ForeignKeys {
			if skipped[fk.RefTable] {
				external[fk.RefTable] = true
			}
		}
	}
	// Referenced skipped tables stay resolvable for ReferencedColumns and key preloading.
	var ext []string
	for _, name := range c.names {
		if external[name] {
			ext = append(ext, name)
			sub.tables[name] = c.tables[name]
			sub.external[name] = true
		}
	}
	return sub, ext, nil
}
