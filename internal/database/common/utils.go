package common

import (
	"errors"
	"fmt"
	"regexp"
)

// Bind parameter limits per statement.
const (
	PostgresMaxParams = 65535
	MySQLMaxParams    = 65535
	SQLiteMaxParams   = 32766
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// ErrConstraint marks a statement rejected by a schema constraint. Retrying
// such a batch cannot succeed.
var ErrConstraint = errors.New("constraint violation")

type ConstraintError struct {
	Table string
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation on %s: %v", e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() []error { return []error{ErrConstraint, e.Err} }

// ValidateIdentifier rejects names that cannot be safely interpolated.
func ValidateIdentifier(name string) error {
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier: %q", name)
	}
	return nil
}

func ValidateIdentifiers(table string, columns ...[]string) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	for _, cols := range columns {
		for _, c := range cols {
			if err := ValidateIdentifier(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// ChunkRows splits rows so no statement binds more than maxParams values.
func ChunkRows(rows [][]interface{}, width, maxParams int) [][][]interface{} {
	if len(rows) == 0 {
		return nil
	}
	per := len(rows)
	if width > 0 {
		per = maxParams / width
		if per < 1 {
			per = 1
		}
	}
	chunks := make([][][]interface{}, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}
