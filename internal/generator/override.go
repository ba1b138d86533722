package generator

import (
	"fmt"
	"strings"
	"time"
)

// Override replaces the type-directed generator of one column. It is decoded
// straight from the config file.
type Override struct {
	Generator string        `mapstructure:"generator" json:"generator,omitempty" yaml:"generator,omitempty"`
	Value     interface{}   `mapstructure:"value" json:"value,omitempty" yaml:"value,omitempty"`
	Values    []interface{} `mapstructure:"values" json:"values,omitempty" yaml:"values,omitempty"`
	Min       int64         `mapstructure:"min" json:"min,omitempty" yaml:"min,omitempty"`
	Max       int64         `mapstructure:"max" json:"max,omitempty" yaml:"max,omitempty"`
	Chance    float64       `mapstructure:"chance" json:"chance,omitempty" yaml:"chance,omitempty"`
	Start     string        `mapstructure:"start" json:"start,omitempty" yaml:"start,omitempty"`
	End       string        `mapstructure:"end" json:"end,omitempty" yaml:"end,omitempty"`
	Length    int           `mapstructure:"length" json:"length,omitempty" yaml:"length,omitempty"`
	// Pool names a shared data pool for from_pool.
	Pool string `mapstructure:"pool" json:"pool,omitempty" yaml:"pool,omitempty"`
}

// DataPools are named value lists that from_pool overrides draw from.
type DataPools map[string][]interface{}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// compile turns an override into a value generator.
func (o Override) compile(pools DataPools) (valueGen, error) {
	name := strings.ToLower(strings.TrimSpace(o.Generator))
	if name == "" && o.Value != nil {
		name = "fixed"
	}

	switch name {
	case "fixed":
		return valueGen{kind: KindFixed, fixed: o.Value}, nil

	case "one_of", "from_pool":
		if o.Pool != "" {
			values, ok := pools[o.Pool]
			if !ok {
				return valueGen{}, fmt.Errorf("unknown data pool %q", o.Pool)
			}
			if len(values) == 0 {
				return valueGen{}, fmt.Errorf("data pool %q is empty", o.Pool)
			}
			return valueGen{kind: KindOneOf, values: values}, nil
		}
		if len(o.Values) == 0 {
			return valueGen{}, fmt.Errorf("%s needs at least one value", name)
		}
		return valueGen{kind: KindOneOf, values: o.Values}, nil

	case "number_range":
		if o.Max < o.Min {
			return valueGen{}, fmt.Errorf("number_range max %d below min %d", o.Max, o.Min)
		}
		return valueGen{kind: KindNumberRange, min: o.Min, max: o.Max}, nil

	case "words", "sentence":
		min, max := o.Min, o.Max
		if min == 0 && max == 0 {
			min, max = 1, 3
			if name == "sentence" {
				min, max = 4, 12
			}
		}
		if min < 0 || max < min {
			return valueGen{}, fmt.Errorf("%s word count range %d..%d is invalid", name, min, max)
		}
		k := KindWords
		if name == "sentence" {
			k = KindSentence
		}
		return valueGen{kind: k, min: min, max: max, length: o.Length}, nil

	case "boolean":
		chance := o.Chance
		if chance == 0 {
			chance = 0.5
		}
		if chance < 0 || chance > 1 {
			return valueGen{}, fmt.Errorf("boolean chance %v outside [0,1]", chance)
		}
		return valueGen{kind: KindBoolean, chance: chance}, nil

	case "datetime_range":
		start, err := parseTime(o.Start)
		if err != nil {
			return valueGen{}, err
		}
		end, err := parseTime(o.End)
		if err != nil {
			return valueGen{}, err
		}
		if !end.After(start) {
			return valueGen{}, fmt.Errorf("datetime_range end %s not after start %s", o.End, o.Start)
		}
		return valueGen{kind: KindDatetimeRange, start: start, end: end}, nil

	case "alphanumeric", "pk_hash":
		n := o.Length
		if n == 0 {
			n = 12
		}
		if n < 0 {
			return valueGen{}, fmt.Errorf("alphanumeric length %d is invalid", n)
		}
		return valueGen{kind: KindAlphanumeric, length: n}, nil
	}
	return valueGen{}, fmt.Errorf("unknown generator %q", o.Generator)
}
