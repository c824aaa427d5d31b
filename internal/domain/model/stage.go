package model

// Stage is a step of an embedding regeneration.
type Stage string

// Regeneration stages in the order they are entered.
const (
	StageIdle        Stage = "idle"
	StageFetching    Stage = "fetching"
	StageResolving   Stage = "resolving"
	StageAggregating Stage = "aggregating"
	StageNormalizing Stage = "normalizing"
	StagePersisted   Stage = "persisted"
	StageFailed      Stage = "failed"
)

var nextStage = map[Stage]Stage{
	StageIdle:        StageFetching,
	StageFetching:    StageResolving,
	StageResolving:   StageAggregating,
	StageAggregating: StageNormalizing,
	StageNormalizing: StagePersisted,
}

// CanTransition reports whether moving from s to to is allowed.
// Every non-terminal stage may fail.
func (s Stage) CanTransition(to Stage) bool {
	if to == StageFailed {
		return s != StagePersisted && s != StageFailed
	}
	return nextStage[s] == to
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool { return s == StagePersisted || s == StageFailed }
