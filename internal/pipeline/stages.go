package pipeline

import (
	"fmt"

	"carbonscan/internal/collation"
	"carbonscan/internal/runstate"
)

// StageInfo describes one pipeline stage for presentation and gating.
type StageInfo struct {
	ID runstate.StageID
	// Step is the wizard step the stage belongs to.
	Step string
	// Source is the stage whose completed cells feed this one; empty for
	// collection, which works straight off the configured axes.
	Source runstate.StageID
	// Locking marks stages whose accepted cells become immutable.
	Locking bool
}

// Stages lists the pipeline stages in order.
func Stages() []StageInfo {
	return []StageInfo{
		{ID: runstate.StageCollect, Step: runstate.StepCollect},
		{ID: runstate.StageExtract, Step: runstate.StepExtract, Source: runstate.StageCollect},
		{ID: runstate.StageFilter, Step: runstate.StepFilter, Source: runstate.StageExtract},
		{ID: runstate.StageAnalyze, Step: runstate.StepAnalyze, Source: runstate.StageFilter, Locking: true},
	}
}

// StageByID looks up a stage descriptor.
func StageByID(id runstate.StageID) (StageInfo, error) {
	for _, info := range Stages() {
		if info.ID == id {
			return info, nil
		}
	}
	return StageInfo{}, fmt.Errorf("unknown stage %q", id)
}

// sourceComplete reports whether the upstream artifact for a key exists, so
// a cell with no input is never dispatched.
func sourceComplete(state *runstate.RunState, info StageInfo, key collation.Key) bool {
	if info.Source == "" {
		return true
	}
	cell := state.Table(info.Source).Cell(key)
	return cell != nil && cell.Status == collation.StatusComplete && cell.HasArtifact()
}
