package seeder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTableSeed = errors.New("table seed failed")
	ErrBackfill  = errors.New("backfill failed")
)

// TableSeedError is a batch that still failed after its retries.
type TableSeedError struct {
	Table    string
	Batch    int
	Attempts int
	Err      error
}

func (e *TableSeedError) Error() string {
	return fmt.Sprintf("table seed failed [phase=seeding] table=%s batch=%d attempts=%d: %v",
		e.Table, e.Batch, e.Attempts, e.Err)
}

func (e *TableSeedError) Unwrap() []error { return []error{ErrTableSeed, e.Err} }

type BackfillError struct {
	Table      string
	ForeignKey string
	Columns    []string
	RefTable   string
	Batch      int
	Reason     string
	Err        error
}

func (e *BackfillError) Error() string {
	msg := fmt.Sprintf("backfill failed [phase=backfilling] table=%s fk=%s (%s → %s)",
		e.Table, e.ForeignKey, strings.Join(e.Columns, ","), e.RefTable)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": batch=%d: %v", e.Batch, e.Err)
	}
	return msg
}

func (e *BackfillError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrBackfill, e.Err}
	}
	return []error{ErrBackfill}
}

// RunError is the single terminal failure of a run. Report holds whatever
// was committed before the run stopped.
type RunError struct {
	Phase     Phase
	Cause     error
	Cancelled bool
	Report    *Report
}

func (e *RunError) Error() string {
	if e.Cancelled {
		return fmt.Sprintf("seed run cancelled [phase=%s]: %v", e.Phase, e.Cause)
	}
	return fmt.Sprintf("seed run failed [phase=%s]: %v", e.Phase, e.Cause)
}

func (e *RunError) Unwrap() error { return e.Cause }
