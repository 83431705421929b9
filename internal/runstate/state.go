package runstate

import (
	"fmt"

	"github.com/google/uuid"

	"carbonscan/internal/collation"
	"carbonscan/internal/company"
	"carbonscan/internal/doctypes"
)

// StageID identifies one pipeline stage and its collation table.
type StageID string

const (
	StageCollect StageID = "collect"
	StageExtract StageID = "extract"
	StageFilter  StageID = "filter"
	StageAnalyze StageID = "analyze"
)

// AllStages returns the ordered pipeline stages.
func AllStages() []StageID {
	return []StageID{StageCollect, StageExtract, StageFilter, StageAnalyze}
}

// Settings carries free-form per-stage configuration persisted with the run.
type Settings struct {
	// Keywords override the configured snippet-filter keyword list when set.
	Keywords []string `json:"keywords,omitempty"`
	// AnalysisModel overrides the configured LLM model when set.
	AnalysisModel string `json:"analysis_model,omitempty"`
}

// RunState is the top-level aggregate for one project's pipeline progress.
// It is owned by the Store and must only be mutated through Store.Mutate.
type RunState struct {
	RunID          string
	Steps          []Step
	MaxStepReached int
	Companies      []company.Company
	DocTypes       []doctypes.DocType
	Settings       Settings

	tables map[StageID]*collation.Table
}

// New returns a fresh RunState with default steps and empty stage tables.
func New() *RunState {
	s := &RunState{
		RunID:  uuid.NewString(),
		Steps:  defaultSteps(),
		tables: make(map[StageID]*collation.Table, len(AllStages())),
	}
	for _, stage := range AllStages() {
		s.tables[stage] = collation.NewTable()
	}
	return s
}

// Table returns the collation table for a stage.
func (s *RunState) Table(stage StageID) *collation.Table {
	return s.tables[stage]
}

// SetCompanies replaces the imported company list. Pure growth (every
// previously imported ticker still present) extends the stage tables with
// idle cells for the new pairs only; any other change is a re-import and
// resets all downstream cell state.
func (s *RunState) SetCompanies(companies []company.Company) {
	if !isSupersetOf(company.Tickers(companies), company.Tickers(s.Companies)) {
		s.resetTables()
	}
	s.Companies = companies
	s.ensureTables()
}

// SetDocTypes replaces the document-type configuration with the same
// growth-vs-reset semantics as SetCompanies.
func (s *RunState) SetDocTypes(defs []doctypes.DocType) {
	if !isSupersetOf(doctypes.Names(defs), doctypes.Names(s.DocTypes)) {
		s.resetTables()
	}
	s.DocTypes = defs
	s.ensureTables()
}

// AdvanceTo records that the user moved to the given step index. Advancing
// past a step requires the preceding step to be valid. MaxStepReached only
// ever increases, so previously completed work stays reachable even when an
// earlier edit invalidates a step.
func (s *RunState) AdvanceTo(step int) error {
	if step < 0 || step >= len(s.Steps) {
		return fmt.Errorf("step %d out of range", step)
	}
	if step > 0 && !s.Steps[step-1].Valid {
		return fmt.Errorf("step %s is not complete", s.Steps[step-1].Name)
	}
	if step > s.MaxStepReached {
		s.MaxStepReached = step
	}
	return nil
}

// StepIndex returns the index of a named step, or -1.
func (s *RunState) StepIndex(name string) int {
	for i, step := range s.Steps {
		if step.Name == name {
			return i
		}
	}
	return -1
}

// RecomputeValidity refreshes every step's validity flag from current state.
// Called by the Store after each mutation.
func (s *RunState) RecomputeValidity() {
	for i := range s.Steps {
		s.Steps[i].Valid = s.stepValid(s.Steps[i].Name)
	}
}

func (s *RunState) stepValid(name string) bool {
	switch name {
	case StepImport:
		return len(s.Companies) > 0
	case StepConfigure:
		return len(s.Companies) > 0 && len(s.DocTypes) > 0
	case StepCollect:
		// Collection is done when every company has retrieved at least one
		// document of some configured type.
		table := s.tables[StageCollect]
		if table == nil || table.Len() == 0 {
			return false
		}
		for _, ticker := range company.Tickers(s.Companies) {
			if !table.RowComplete(ticker) {
				return false
			}
		}
		return true
	case StepExtract:
		return hasComplete(s.tables[StageExtract])
	case StepFilter:
		return hasComplete(s.tables[StageFilter])
	case StepAnalyze:
		counts := countsFor(s.tables[StageAnalyze])
		return counts[collation.StatusReady]+counts[collation.StatusComplete] > 0
	case StepVerify:
		// Verification requires every pending analysis to be resolved by a
		// reviewer: nothing awaiting judgment and at least one acceptance.
		counts := countsFor(s.tables[StageAnalyze])
		return counts[collation.StatusReady] == 0 &&
			counts[collation.StatusInProgress] == 0 &&
			counts[collation.StatusComplete] > 0
	case StepExport:
		return s.stepValid(StepVerify)
	default:
		return false
	}
}

func (s *RunState) ensureTables() {
	tickers := company.Tickers(s.Companies)
	names := doctypes.Names(s.DocTypes)
	for _, stage := range AllStages() {
		s.tables[stage].Ensure(tickers, names)
	}
}

func (s *RunState) resetTables() {
	for _, stage := range AllStages() {
		s.tables[stage].Reset()
	}
}

func hasComplete(table *collation.Table) bool {
	return countsFor(table)[collation.StatusComplete] > 0
}

func countsFor(table *collation.Table) map[collation.Status]int {
	if table == nil {
		return map[collation.Status]int{}
	}
	return table.CountByStatus()
}

func isSupersetOf(superset, subset []string) bool {
	set := make(map[string]struct{}, len(superset))
	for _, v := range superset {
		set[v] = struct{}{}
	}
	for _, v := range subset {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
