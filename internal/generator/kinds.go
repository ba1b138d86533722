package generator

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind is the closed set of value generator variants. A column is resolved to
// exactly one kind when its table spec is compiled.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindTinyInt
	KindSmallInt
	KindMediumInt
	KindBigInt
	KindYear
	KindSequence
	KindDecimal
	KindFloat
	KindBool
	KindText
	KindChar
	KindUUID
	KindDate
	KindTimestamp
	KindTime
	KindJSON
	KindBytes
	KindInet
	KindEnum

	// override variants
	KindFixed
	KindOneOf
	KindNumberRange
	KindWords
	KindSentence
	KindBoolean
	KindDatetimeRange
	KindAlphanumeric
)

var kindNames = map[Kind]string{
	KindNull:          "null",
	KindInt:           "int",
	KindTinyInt:       "tinyint",
	KindSmallInt:      "smallint",
	KindMediumInt:     "mediumint",
	KindYear:          "year",
	KindBigInt:        "bigint",
	KindSequence:      "sequence",
	KindDecimal:       "decimal",
	KindFloat:         "float",
	KindBool:          "bool",
	KindText:          "text",
	KindChar:          "char",
	KindUUID:          "uuid",
	KindDate:          "date",
	KindTimestamp:     "timestamp",
	KindTime:          "time",
	KindJSON:          "json",
	KindBytes:         "bytes",
	KindInet:          "inet",
	KindEnum:          "enum",
	KindFixed:         "fixed",
	KindOneOf:         "one_of",
	KindNumberRange:   "number_range",
	KindWords:         "words",
	KindSentence:      "sentence",
	KindBoolean:       "boolean",
	KindDatetimeRange: "datetime_range",
	KindAlphanumeric:  "alphanumeric",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// typeInfo is a declared column type broken into its base name and modifiers.
type typeInfo struct {
	base      string
	length    int
	precision int
	scale     int
	unsigned  bool
	array     bool
}

var typeArgsRe = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)`)

func parseType(declared string) typeInfo {
	t := strings.ToUpper(strings.TrimSpace(declared))
	info := typeInfo{}

	if strings.HasSuffix(t, "[]") || strings.HasPrefix(t, "_") || strings.HasPrefix(t, "ARRAY") {
		info.array = true
	}
	if m := typeArgsRe.FindStringSubmatch(t); m != nil {
		info.length, _ = strconv.Atoi(m[1])
		info.precision = info.length
		if m[2] != "" {
			info.scale, _ = strconv.Atoi(m[2])
		}
	}
	if strings.Contains(t, "UNSIGNED") {
		info.unsigned = true
		t = strings.TrimSpace(strings.Replace(t, "UNSIGNED", "", 1))
	}

	// Extract base type (e.g., VARCHAR(255) -> VARCHAR)
	if idx := strings.Index(t, "("); idx > 0 {
		rest := ""
		if end := strings.Index(t[idx:], ")"); end > 0 {
			rest = strings.TrimSpace(t[idx+end+1:])
		}
		t = strings.TrimSpace(t[:idx])
		if rest != "" {
			t += " " + rest
		}
	}
	info.base = t
	return info
}

// kindForType maps a declared type to a variant. ok is false when the type is
// not one the generator knows how to produce.
func kindForType(info typeInfo) (Kind, bool) {
	if info.array {
		return KindNull, false
	}
	t := info.base

	switch t {
	case "TINYINT":
		if info.length == 1 {
			return KindBool, true
		}
		return KindTinyInt, true
	case "SMALLINT", "INT2", "SMALLSERIAL", "SERIAL2":
		return KindSmallInt, true
	case "MEDIUMINT":
		return KindMediumInt, true
	case "YEAR":
		return KindYear, true
	case "INT", "INTEGER", "INT4", "SERIAL", "SERIAL4":
		return KindInt, true
	case "BIGINT", "INT8", "BIGSERIAL", "SERIAL8":
		return KindBigInt, true
	case "DECIMAL", "NUMERIC", "MONEY":
		return KindDecimal, true
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION":
		return KindFloat, true
	case "BOOL", "BOOLEAN", "BIT":
		return KindBool, true
	case "CHAR", "CHARACTER", "BPCHAR", "NCHAR":
		return KindChar, true
	case "VARCHAR", "CHARACTER VARYING", "NVARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "CITEXT", "STRING", "CLOB":
		return KindText, true
	case "UUID", "UNIQUEIDENTIFIER":
		return KindUUID, true
	case "DATE":
		return KindDate, true
	case "TIME", "TIME WITHOUT TIME ZONE", "TIME WITH TIME ZONE", "TIMETZ":
		return KindTime, true
	case "JSON", "JSONB":
		return KindJSON, true
	case "BYTEA", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY":
		return KindBytes, true
	case "INET", "CIDR":
		return KindInet, true
	}

	switch {
	case strings.HasPrefix(t, "TIMESTAMP") || strings.HasPrefix(t, "DATETIME"):
		return KindTimestamp, true
	case strings.Contains(t, "INT"):
		return KindInt, true
	case strings.Contains(t, "CHAR") || strings.Contains(t, "TEXT"):
		return KindText, true
	}
	return KindNull, false
}

func isIntegerKind(k Kind) bool {
	switch k {
	case KindInt, KindTinyInt, KindSmallInt, KindMediumInt, KindBigInt:
		return true
	}
	return false
}

// intBounds is the inclusive range drawn for an integer kind. It stays inside
// the declared type and above zero.
func intBounds(k Kind, unsigned bool) (int64, int64) {
	switch k {
	case KindTinyInt:
		if unsigned {
			return 1, 255
		}
		return 1, 127
	case KindSmallInt:
		if unsigned {
			return 1, 65535
		}
		return 1, 32767
	case KindMediumInt:
		if unsigned {
			return 1, 16777215
		}
		return 1, 8388607
	case KindBigInt:
		return 1, 1000000000
	case KindYear:
		return 1901, 2155
	}
	return 1, 1000000
}
