package collation

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition marks contract violations: a caller asked for a
// transition the current status does not permit. These are defects and are
// propagated, unlike external-call failures which land on the cell itself.
var ErrInvalidTransition = errors.New("invalid cell transition")

// ErrLocked marks mutation attempts on a locked cell.
var ErrLocked = errors.New("cell is locked")

// Key identifies a cell by its (company, document type) pair.
type Key struct {
	Ticker  string `json:"ticker"`
	DocType string `json:"doc_type"`
}

func (k Key) String() string {
	return k.Ticker + "/" + k.DocType
}

// Cell is the tracked unit of work for one (company, document type) pair.
type Cell struct {
	Ticker       string     `json:"ticker"`
	DocType      string     `json:"doc_type"`
	Status       Status     `json:"status"`
	Payload      *Payload   `json:"payload,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Locked       bool       `json:"locked,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// NewCell returns an idle cell for the given pair.
func NewCell(ticker, docType string) *Cell {
	return &Cell{Ticker: ticker, DocType: docType, Status: StatusIdle}
}

// Key returns the cell's table key.
func (c *Cell) Key() Key {
	return Key{Ticker: c.Ticker, DocType: c.DocType}
}

// HasArtifact reports whether the cell carries a retrievable artifact
// reference (required for OpAdvance eligibility).
func (c *Cell) HasArtifact() bool {
	return c.Payload.Artifact() != ""
}

// Start moves an idle or failed cell into in_progress, clearing any stored
// error. Starting a cell already in progress is rejected so the same cell is
// never double-dispatched.
func (c *Cell) Start() error {
	if err := c.guardMutation("start"); err != nil {
		return err
	}
	switch c.Status {
	case StatusIdle, StatusFailed:
		c.Status = StatusInProgress
		c.ErrorMessage = ""
		c.touch()
		return nil
	default:
		return c.transitionError("start")
	}
}

// Advance moves a ready_for_next cell into in_progress for the second action
// of a two-step stage. The intermediate artifact is retained so the action
// can consume it.
func (c *Cell) Advance() error {
	if err := c.guardMutation("advance"); err != nil {
		return err
	}
	if c.Status != StatusReady {
		return c.transitionError("advance")
	}
	if !c.HasArtifact() {
		return fmt.Errorf("%w: advance %s: no artifact on cell", ErrInvalidTransition, c.Key())
	}
	c.Status = StatusInProgress
	c.ErrorMessage = ""
	c.touch()
	return nil
}

// MarkReady records a successful external call that produced an intermediate
// artifact requiring a further action or human judgment.
func (c *Cell) MarkReady(payload *Payload) error {
	if c.Status != StatusInProgress {
		return c.transitionError("succeed")
	}
	if payload == nil {
		return fmt.Errorf("%w: succeed %s: no payload", ErrInvalidTransition, c.Key())
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: succeed %s: %w", ErrInvalidTransition, c.Key(), err)
	}
	c.Status = StatusReady
	c.Payload = payload
	c.ErrorMessage = ""
	c.touch()
	return nil
}

// MarkComplete records terminal success with the final artifact reference.
func (c *Cell) MarkComplete(payload *Payload) error {
	if c.Status != StatusInProgress {
		return c.transitionError("succeed")
	}
	if payload == nil {
		return fmt.Errorf("%w: succeed %s: no payload", ErrInvalidTransition, c.Key())
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: succeed %s: %w", ErrInvalidTransition, c.Key(), err)
	}
	c.Status = StatusComplete
	c.Payload = payload
	c.ErrorMessage = ""
	c.touch()
	return nil
}

// Fail records an external-call failure. The message is stored verbatim.
func (c *Cell) Fail(message string) error {
	if c.Status != StatusInProgress {
		return c.transitionError("fail")
	}
	c.Status = StatusFailed
	c.ErrorMessage = message
	c.touch()
	return nil
}

// Accept confirms a ready_for_next cell as complete, optionally locking it
// against further mutation (used by review stages).
func (c *Cell) Accept(lock bool) error {
	if err := c.guardMutation("accept"); err != nil {
		return err
	}
	if c.Status != StatusReady {
		return c.transitionError("accept")
	}
	c.Status = StatusComplete
	c.Locked = lock
	c.ErrorMessage = ""
	c.touch()
	return nil
}

// Reject clears a ready_for_next cell's payload and returns it to idle so the
// work can be re-run.
func (c *Cell) Reject() error {
	if err := c.guardMutation("reject"); err != nil {
		return err
	}
	if c.Status != StatusReady {
		return c.transitionError("reject")
	}
	c.Status = StatusIdle
	c.Payload = nil
	c.ErrorMessage = ""
	c.touch()
	return nil
}

// Retry re-enters in_progress from failed. It is Start restricted to failed.
func (c *Cell) Retry() error {
	if err := c.guardMutation("retry"); err != nil {
		return err
	}
	if c.Status != StatusFailed {
		return c.transitionError("retry")
	}
	return c.Start()
}

// Unlock clears the lock on a complete cell so a reviewer can revisit it.
func (c *Cell) Unlock() {
	c.Locked = false
	c.touch()
}

func (c *Cell) guardMutation(op string) error {
	if c.Locked && c.Status == StatusComplete {
		return fmt.Errorf("%w: %s %s", ErrLocked, op, c.Key())
	}
	return nil
}

func (c *Cell) transitionError(op string) error {
	return fmt.Errorf("%w: %s %s from %s", ErrInvalidTransition, op, c.Key(), c.Status)
}

func (c *Cell) touch() {
	now := time.Now().UTC()
	c.UpdatedAt = &now
}
