package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rana718/graftseed/internal/catalog"
)

type CompileOptions struct {
	// Tracked lists the key columns kept in the table's pool.
	Tracked []string
	// Deferred holds the names of FK constraints filled during backfill.
	Deferred  map[string]bool
	Overrides map[string]Override
	DataPools DataPools
}

type columnSpec struct {
	name     string
	gen      valueGen
	fk       int
	nullable bool
}

type fkSpec struct {
	fk       catalog.ForeignKey
	cols     []int
	self     bool
	deferred bool
}

type uniqueSpec struct {
	name    string
	columns []string
	idx     []int
}

// ColumnKind describes the generator chosen for one insert column.
type ColumnKind struct {
	Column string `json:"column" yaml:"column"`
	Kind   string `json:"kind" yaml:"kind"`
}

// TableSpec is a table's generator, compiled once before seeding.
type TableSpec struct {
	Table string
	// Columns is the insert column order.
	Columns []string
	// Returning lists tracked columns the database assigns.
	Returning []string
	Tracked   []string
	Deferred  []catalog.ForeignKey
	// Sequence names the single integer primary key the seeder mints, if any.
	Sequence string
	// SelfRef is set when the table has a non-deferred FK onto itself.
	SelfRef bool

	cols     []columnSpec
	colIndex map[string]int
	fks      []fkSpec
	uniques  []uniqueSpec
	keyIndex map[string]int
}

// MintedKeys reports whether every tracked key is produced by the generator.
func (s *TableSpec) MintedKeys() bool { return len(s.Returning) == 0 }

func (s *TableSpec) Kinds() []ColumnKind {
	out := make([]ColumnKind, 0, len(s.cols))
	for _, c := range s.cols {
		k := c.gen.kind.String()
		if c.fk >= 0 {
			k = "fk:" + s.fks[c.fk].fk.RefTable
			if s.fks[c.fk].deferred {
				k += " (deferred)"
			}
		}
		out = append(out, ColumnKind{Column: c.name, Kind: k})
	}
	return out
}

// Compile resolves every column of t to a generator variant.
func Compile(t *catalog.Table, opts CompileOptions) (*TableSpec, error) {
	spec := &TableSpec{
		Table:    t.Name,
		Tracked:  opts.Tracked,
		colIndex: make(map[string]int),
		keyIndex: make(map[string]int, len(opts.Tracked)),
	}

	for col := range opts.Overrides {
		if _, ok := t.Column(col); !ok {
			return nil, &catalog.SchemaError{Table: t.Name, Column: col, Reason: "override for unknown column"}
		}
	}

	fkOf := make(map[string]int)
	for i, fk := range t.ForeignKeys {
		fs := fkSpec{fk: fk, self: fk.Self(t.Name), deferred: opts.Deferred[fk.Name]}
		if fs.deferred {
			spec.Deferred = append(spec.Deferred, fk)
		} else if fs.self {
			spec.SelfRef = true
		}
		spec.fks = append(spec.fks, fs)
		for _, c := range fk.Columns {
			if _, taken := fkOf[c]; !taken {
				fkOf[c] = i
			}
		}
	}

	uniqueCols := make(map[string]bool)
	if len(t.PrimaryKey) == 1 {
		uniqueCols[t.PrimaryKey[0]] = true
	}
	for _, u := range t.Uniques {
		if len(u.Columns) == 1 {
			uniqueCols[u.Columns[0]] = true
		}
	}
	inKey := make(map[string]bool)
	for _, c := range t.PrimaryKey {
		inKey[c] = true
	}
	for _, u := range t.Uniques {
		for _, c := range u.Columns {
			inKey[c] = true
		}
	}

	for _, col := range t.Columns {
		if fi, ok := fkOf[col.Name]; ok {
			if _, ov := opts.Overrides[col.Name]; ov {
				return nil, &catalog.SchemaError{Table: t.Name, Column: col.Name, Reason: "foreign key columns cannot be overridden"}
			}
			spec.add(columnSpec{name: col.Name, fk: fi})
			continue
		}

		if ov, ok := opts.Overrides[col.Name]; ok {
			g, err := ov.compile(opts.DataPools)
			if err != nil {
				return nil, &catalog.SchemaError{Table: t.Name, Column: col.Name, Reason: "invalid override", Err: err}
			}
			spec.add(columnSpec{name: col.Name, gen: g, fk: -1})
			continue
		}

		if col.AutoIncrement {
			continue
		}

		g, ok := resolve(col, uniqueCols[col.Name])
		if !ok {
			switch {
			case col.HasDefault:
				continue
			case col.Nullable:
				g = valueGen{kind: KindNull}
			default:
				return nil, &catalog.SchemaError{Table: t.Name, Column: col.Name,
					Reason: fmt.Sprintf("unsupported type %s on NOT NULL column without default", col.Type)}
			}
		}
		if len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == col.Name && isIntegerKind(g.kind) {
			g = valueGen{kind: KindSequence}
			spec.Sequence = col.Name
		}
		spec.add(columnSpec{name: col.Name, gen: g, fk: -1, nullable: col.Nullable && !inKey[col.Name]})
	}

	for i := range spec.fks {
		for _, c := range spec.fks[i].fk.Columns {
			spec.fks[i].cols = append(spec.fks[i].cols, spec.colIndex[c])
		}
	}

	for i, c := range spec.Tracked {
		spec.keyIndex[c] = i
		if _, ok := spec.colIndex[c]; !ok {
			spec.Returning = append(spec.Returning, c)
		}
	}

	if len(t.PrimaryKey) > 0 {
		spec.addUnique(t.Name+"_pkey", t.PrimaryKey)
	}
	for _, u := range t.Uniques {
		spec.addUnique(u.Name, u.Columns)
	}
	sort.SliceStable(spec.uniques, func(i, j int) bool { return spec.uniques[i].name < spec.uniques[j].name })

	return spec, nil
}

func (s *TableSpec) add(c columnSpec) {
	s.colIndex[c.name] = len(s.cols)
	s.cols = append(s.cols, c)
	s.Columns = append(s.Columns, c.name)
}

// addUnique registers a constraint the generator must honour. Constraints
// touching database-assigned columns are left to the database.
func (s *TableSpec) addUnique(name string, cols []string) {
	us := uniqueSpec{name: name, columns: cols}
	for _, c := range cols {
		i, ok := s.colIndex[c]
		if !ok {
			return
		}
		us.idx = append(us.idx, i)
	}
	s.uniques = append(s.uniques, us)
}

func resolve(col catalog.Column, unique bool) (valueGen, bool) {
	if len(col.EnumValues) > 0 {
		return valueGen{kind: KindEnum, enum: col.EnumValues}, true
	}
	info := parseType(col.Type)
	k, ok := kindForType(info)
	if !ok {
		return valueGen{}, false
	}
	g := valueGen{kind: k, unique: unique}
	switch k {
	case KindText, KindChar:
		g.length = info.length
		g.sem = semanticFor(col.Name)
		if k == KindChar && g.sem == semWord && strings.Contains(strings.ToLower(col.Name), "uuid") {
			g.kind = KindUUID
		}
	case KindDecimal:
		g.precision, g.scale = info.precision, info.scale
	case KindInt, KindTinyInt, KindSmallInt, KindMediumInt, KindBigInt, KindYear:
		g.min, g.max = intBounds(k, info.unsigned)
	}
	return g, true
}
