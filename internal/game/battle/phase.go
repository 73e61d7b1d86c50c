package battle

import "github.com/cory-johannsen/battlecore/internal/game/reward"

// Phase is the top-level state of a battle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseInProgress
	PhaseVictory
	PhaseDefeat
	PhaseRetreated
)

// String returns a human-readable phase label.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseInProgress:
		return "in_progress"
	case PhaseVictory:
		return "victory"
	case PhaseDefeat:
		return "defeat"
	case PhaseRetreated:
		return "retreated"
	default:
		return "unknown"
	}
}

// Terminal reports whether the battle instance has ended.
func (p Phase) Terminal() bool {
	return p == PhaseVictory || p == PhaseDefeat || p == PhaseRetreated
}

// outcome maps a terminal phase to its reward outcome.
func (p Phase) outcome() reward.Outcome {
	switch p {
	case PhaseVictory:
		return reward.Victory
	case PhaseDefeat:
		return reward.Defeat
	default:
		return reward.Retreated
	}
}
