package generator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPoolEmpty           = errors.New("key pool empty")
	ErrUniquenessExhausted = errors.New("uniqueness retries exhausted")
)

// PoolEmptyError is raised when a NOT NULL foreign key has nothing to reference.
type PoolEmptyError struct {
	Table    string
	Columns  []string
	RefTable string
}

func (e *PoolEmptyError) Error() string {
	return fmt.Sprintf("pool empty [phase=seeding] table=%s column=%s: referenced table %s has no rows to draw from",
		e.Table, strings.Join(e.Columns, ","), e.RefTable)
}

func (e *PoolEmptyError) Unwrap() error { return ErrPoolEmpty }

// UniquenessExhaustedError is raised when no fresh value was found for a
// unique constraint within the retry bound.
type UniquenessExhaustedError struct {
	Table      string
	Constraint string
	Columns    []string
	Attempts   int
}

func (e *UniquenessExhaustedError) Error() string {
	return fmt.Sprintf("uniqueness exhausted [phase=seeding] table=%s constraint=%s columns=%s: no unused value after %d attempts",
		e.Table, e.Constraint, strings.Join(e.Columns, ","), e.Attempts)
}

func (e *UniquenessExhaustedError) Unwrap() error { return ErrUniquenessExhausted }
