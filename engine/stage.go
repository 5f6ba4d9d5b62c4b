package engine

import (
	"fmt"

	"github.com/warp/tax-engine/generic"
)

// =============================================================================
// STAGE MACHINE
// =============================================================================

// Stage is the progress of one orchestrator run. Runs move strictly forward
// one stage at a time and never restart.
type Stage int

const (
	StageCreated Stage = iota
	StageAggregated
	StageReliefsResolved
	StageComputed
	StageReconciled
	StageValidated

	// StageFailed is entered from any stage when a run returns an error.
	StageFailed
)

var stageNames = [...]string{
	StageCreated:         "created",
	StageAggregated:      "aggregated",
	StageReliefsResolved: "reliefs_resolved",
	StageComputed:        "computed",
	StageReconciled:      "reconciled",
	StageValidated:       "validated",
	StageFailed:          "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// IsTerminal reports whether the run has finished, with a summary or an error.
func (s Stage) IsTerminal() bool { return s == StageValidated || s == StageFailed }

// Transition moves *cur from `from` to `to`. The caller states the stage it
// believes the run is in, so out-of-order driving is observable.
func Transition(cur *Stage, from, to Stage) error {
	if *cur != from {
		return fmt.Errorf("%w: expected %s, run is %s", generic.ErrInvalidStageTransition, from, *cur)
	}
	if to != from+1 || from.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", generic.ErrInvalidStageTransition, from, to)
	}
	*cur = to
	return nil
}
