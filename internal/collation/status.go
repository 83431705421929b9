package collation

import "strings"

// Status represents the lifecycle of a cell.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready_for_next"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusIdle,
	StatusInProgress,
	StatusReady,
	StatusComplete,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// Operation identifies an action a caller can apply to cells.
type Operation string

const (
	// OpStart dispatches the stage's primary action on idle or failed cells.
	OpStart Operation = "start"
	// OpAdvance dispatches the second action of a two-step stage on
	// ready_for_next cells that carry a retrievable artifact.
	OpAdvance Operation = "advance"
	// OpAccept confirms a ready_for_next cell as complete.
	OpAccept Operation = "accept"
	// OpReject clears a ready_for_next cell back to idle.
	OpReject Operation = "reject"
	// OpRetry re-dispatches the primary action on failed cells only.
	OpRetry Operation = "retry"
)

// Accepts reports whether a cell in the given status legally accepts op.
// For OpAdvance the caller must additionally check the cell's artifact via
// Cell.HasArtifact; Table.Eligible does both.
func (op Operation) Accepts(status Status) bool {
	switch op {
	case OpStart:
		return status == StatusIdle || status == StatusFailed
	case OpAdvance, OpAccept, OpReject:
		return status == StatusReady
	case OpRetry:
		return status == StatusFailed
	default:
		return false
	}
}
