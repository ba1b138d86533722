package seeder

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Rana718/graftseed/internal/plan"
)

type TableState string

const (
	TablePending   TableState = "pending"
	TableSeeding   TableState = "seeding"
	TableDone      TableState = "done"
	TableFailed    TableState = "failed"
	TableSkipped   TableState = "skipped"
	TableCancelled TableState = "cancelled"
)

type TableReport struct {
	Table      string        `json:"table"`
	Wave       int           `json:"wave"`
	Target     int           `json:"target"`
	Inserted   int           `json:"inserted"`
	Backfilled int           `json:"backfilled"`
	Batches    int           `json:"batches"`
	Retries    int           `json:"retries"`
	State      TableState    `json:"state"`
	Error      string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"-"`
	ElapsedMS  int64         `json:"elapsed_ms"`
}

type Failure struct {
	Table string `json:"table"`
	Phase Phase  `json:"phase"`
	Error string `json:"error"`
}

// Report is written by the run; each TableReport is owned by the worker
// seeding that table.
type Report struct {
	State     State          `json:"state"`
	DryRun    bool           `json:"dry_run"`
	Seed      int64          `json:"seed"`
	StartedAt time.Time      `json:"started_at"`
	Elapsed   time.Duration  `json:"-"`
	ElapsedMS int64          `json:"elapsed_ms"`
	Tables    []*TableReport `json:"tables"`
	Failures  []Failure      `json:"failures,omitempty"`

	mu     sync.Mutex
	byName map[string]*TableReport
}

func newReport(p *plan.SeedPlan, seed int64, dryRun bool) *Report {
	r := &Report{
		State:     State{Phase: PhaseSeeding},
		DryRun:    dryRun,
		Seed:      seed,
		StartedAt: time.Now().UTC(),
		byName:    make(map[string]*TableReport),
	}
	if p == nil {
		return r
	}
	for _, name := range p.Order() {
		tp := p.Tables[name]
		tr := &TableReport{Table: name, Wave: tp.Wave + 1, Target: tp.Rows, State: TablePending}
		r.Tables = append(r.Tables, tr)
		r.byName[name] = tr
	}
	return r
}

// Table returns the entry for a seeded table, or nil.
func (r *Report) Table(name string) *TableReport {
	if r == nil {
		return nil
	}
	return r.byName[name]
}

func (r *Report) Inserted() int {
	total := 0
	for _, t := range r.Tables {
		total += t.Inserted
	}
	return total
}

func (r *Report) Backfilled() int {
	total := 0
	for _, t := range r.Tables {
		total += t.Backfilled
	}
	return total
}

func (r *Report) addFailure(table string, phase Phase, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, Failure{Table: table, Phase: phase, Error: err.Error()})
}

func (r *Report) finish(st State) {
	r.State = st
	r.Elapsed = time.Since(r.StartedAt)
	r.ElapsedMS = r.Elapsed.Milliseconds()
}

func (r *Report) JSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.Tables {
		t.ElapsedMS = t.Elapsed.Milliseconds()
	}
	return json.MarshalIndent(r, "", "  ")
}

func (r *Report) WriteFile(path string) error {
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
