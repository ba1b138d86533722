package cmd

import (
	"sync"
	"time"

	"github.com/Rana718/graftseed/internal/seeder"
	"github.com/fatih/color"
)

// progressPrinter prints a line per table at every quarter of its target.
type progressPrinter struct {
	mu   sync.Mutex
	last map[string]int
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{last: make(map[string]int)}
}

func (p *progressPrinter) update(table string, done, total int) {
	if total <= 0 {
		return
	}
	quarter := done * 4 / total

	p.mu.Lock()
	defer p.mu.Unlock()
	if quarter <= p.last[table] {
		return
	}
	p.last[table] = quarter
	color.New(color.FgHiBlack).Printf("   %-28s %d/%d (%d%%)\n", table, done, total, done*100/total)
}

func printReport(report *seeder.Report) {
	if report == nil || len(report.Tables) == 0 {
		return
	}
	color.Cyan("\n📊 Seed report (seed %d)", report.Seed)
	for _, tr := range report.Tables {
		line := color.New(color.FgGreen)
		switch tr.State {
		case seeder.TableFailed, seeder.TableCancelled:
			line = color.New(color.FgRed)
		case seeder.TableSkipped:
			line = color.New(color.FgYellow)
		}
		line.Printf("   %-28s %-9s %6d/%-6d rows", tr.Table, tr.State, tr.Inserted, tr.Target)
		if tr.Backfilled > 0 {
			line.Printf("  %d backfilled", tr.Backfilled)
		}
		if tr.Retries > 0 {
			line.Printf("  %d retries", tr.Retries)
		}
		line.Printf("  %s\n", tr.Elapsed.Round(time.Millisecond))
	}
	for _, f := range report.Failures {
		color.Red("   ❌ %s [%s]: %s", f.Table, f.Phase, f.Error)
	}
	color.White("   state: %s", report.State)
}
