package seeder

import "fmt"

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseBuilding    Phase = "building"
	PhaseScheduling  Phase = "scheduling"
	PhaseSeeding     Phase = "seeding"
	PhaseBackfilling Phase = "backfilling"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// State is a snapshot of the run state machine. Wave is 1-based while seeding.
type State struct {
	Phase  Phase  `json:"phase"`
	Wave   int    `json:"wave,omitempty"`
	Waves  int    `json:"waves,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s State) Terminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseFailed
}

func (s State) String() string {
	switch s.Phase {
	case PhaseSeeding:
		return fmt.Sprintf("seeding (wave %d of %d)", s.Wave, s.Waves)
	case PhaseFailed:
		return fmt.Sprintf("failed(%s)", s.Reason)
	}
	return string(s.Phase)
}

func (s *Seeder) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Seeder) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}
