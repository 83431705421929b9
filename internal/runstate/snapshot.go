package runstate

import (
	"encoding/json"
	"fmt"

	"carbonscan/internal/collation"
	"carbonscan/internal/company"
	"carbonscan/internal/doctypes"
)

// Snapshot is the serialized form of a RunState. Transient session state
// (selections, pending persistence timers) is deliberately absent. Idle
// cells are omitted; they regenerate from the company and document-type
// axes on load.
type Snapshot struct {
	RunID     string                        `json:"run_id"`
	Steps     []Step                        `json:"steps"`
	MaxStep   int                           `json:"max_step"`
	Companies []company.Company             `json:"companies,omitempty"`
	DocTypes  []doctypes.DocType            `json:"doc_types,omitempty"`
	Settings  Settings                      `json:"settings,omitempty"`
	Stages    map[StageID][]*collation.Cell `json:"stages,omitempty"`
}

// MarshalSnapshot serializes the RunState to its canonical JSON form.
// The output is deterministic for a given state, which makes byte-level
// dirty comparison in the Store sound.
func (s *RunState) MarshalSnapshot() ([]byte, error) {
	snap := Snapshot{
		RunID:     s.RunID,
		Steps:     s.Steps,
		MaxStep:   s.MaxStepReached,
		Companies: s.Companies,
		DocTypes:  s.DocTypes,
		Settings:  s.Settings,
	}
	stages := make(map[StageID][]*collation.Cell)
	for _, stage := range AllStages() {
		var cells []*collation.Cell
		for _, cell := range s.tables[stage].Cells() {
			if cell.Status == collation.StatusIdle && !cell.Locked {
				continue
			}
			cells = append(cells, cell)
		}
		if len(cells) > 0 {
			stages[stage] = cells
		}
	}
	if len(stages) > 0 {
		snap.Stages = stages
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return body, nil
}

// UnmarshalSnapshot rebuilds a RunState from a serialized snapshot. Every
// missing or malformed field defaults rather than failing: unknown statuses,
// in-flight statuses left over from an interrupted session, and payloads
// that do not match their status all normalize to idle. Only undecodable
// JSON is reported as an error; callers fall back to a fresh run.
func UnmarshalSnapshot(body []byte) (*RunState, error) {
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	state := New()
	if snap.RunID != "" {
		state.RunID = snap.RunID
	}
	state.Steps = mergeSteps(snap.Steps)
	state.MaxStepReached = clamp(snap.MaxStep, 0, len(state.Steps)-1)
	state.Companies = snap.Companies
	state.DocTypes = snap.DocTypes
	state.Settings = snap.Settings
	state.ensureTables()

	for _, stage := range AllStages() {
		table := state.tables[stage]
		for _, saved := range snap.Stages[stage] {
			if saved == nil {
				continue
			}
			cell := table.Cell(collation.Key{Ticker: saved.Ticker, DocType: saved.DocType})
			if cell == nil {
				// The pair no longer exists in the configured axes; drop it.
				continue
			}
			applySavedCell(cell, saved)
		}
	}

	state.RecomputeValidity()
	return state, nil
}

// applySavedCell copies a persisted cell onto the live one, normalizing
// corrupted or partial writes back to idle.
func applySavedCell(cell, saved *collation.Cell) {
	status, ok := collation.ParseStatus(string(saved.Status))
	if !ok || status == collation.StatusInProgress {
		// Unknown status, or an operation was in flight when the session
		// ended; either way the work needs to be redone.
		return
	}
	if statusNeedsPayload(status) && (saved.Payload == nil || saved.Payload.Validate() != nil) {
		return
	}
	cell.Status = status
	cell.Payload = saved.Payload
	cell.ErrorMessage = saved.ErrorMessage
	cell.Locked = saved.Locked && status == collation.StatusComplete
	cell.UpdatedAt = saved.UpdatedAt
}

func statusNeedsPayload(status collation.Status) bool {
	return status == collation.StatusReady || status == collation.StatusComplete
}

// mergeSteps reconciles persisted validity flags with the canonical step
// list, so renamed or reordered steps in older snapshots cannot corrupt the
// wizard.
func mergeSteps(saved []Step) []Step {
	steps := defaultSteps()
	validByName := make(map[string]bool, len(saved))
	for _, s := range saved {
		validByName[s.Name] = s.Valid
	}
	for i := range steps {
		steps[i].Valid = validByName[steps[i].Name]
	}
	return steps
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
