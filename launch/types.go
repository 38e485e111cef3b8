/*
Package launch implements the approval lifecycle of compensation launches.

PURPOSE:
  A launch is one worker's daily submission: the calculation input they
  reported and the breakdown the engine computed from it. Every launch
  waits for a reviewer before it becomes payable.

STATE MACHINE:

                   ┌──────────┐
    Submit ──────▶ │ pending  │
                   └────┬─────┘
          Approve       │ Reject         EditAndApprove
        ┌───────────────┼────────────────────┐
        ▼               ▼                    ▼
   ┌──────────┐    ┌──────────┐    ┌─────────────────┐
   │ approved │    │ rejected │    │ edited_approved │
   └──────────┘    └──────────┘    └─────────────────┘

  The three right-hand states are terminal. Any transition out of them
  fails with ErrInvalidTransition.

DAILY LIMIT:
  At most one non-rejected launch exists per (worker, date). Rejecting a
  launch frees the slot so the worker can resubmit. The store enforces the
  limit atomically; the service check before it only produces a friendlier
  error earlier.

AUDIT TRAIL:
  Every transition appends an ApprovalEvent. Launches and events are never
  deleted.

SEE ALSO:
  - service.go: Lifecycle operations
  - store.go: Persistence contract
  - store/sqlite/sqlite.go: Production store
*/
package launch

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/compensation"
)

// DateLayout is the calendar date format of Launch.Date.
const DateLayout = "2006-01-02"

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending        Status = "pending"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusEditedApproved Status = "edited_approved"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// HoldsDay reports whether a launch in this status occupies its (worker, date) slot.
func (s Status) HoldsDay() bool {
	return s != StatusRejected
}

// IsValid reports whether s is one of the four known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusEditedApproved:
		return true
	}
	return false
}

// =============================================================================
// LAUNCH
// =============================================================================

// Launch is a persisted daily submission.
type Launch struct {
	ID       string
	WorkerID string
	Date     string // YYYY-MM-DD
	Role     string
	Shift    string

	// Stored as JSON text; key presence survives a round trip.
	Input  compensation.Payload
	Result compensation.Breakdown

	Status Status

	// Copied from Result for listing and reporting.
	ActivitiesSubtotal decimal.Decimal
	KPIBonus           decimal.Decimal
	TotalCompensation  decimal.Decimal

	ReviewedBy   *string
	ReviewedAt   *time.Time
	EditedBy     *string
	EditedAt     *time.Time
	Observations *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// applyResult sets the result and its denormalized totals.
func (l *Launch) applyResult(b compensation.Breakdown) {
	l.Result = b
	l.ActivitiesSubtotal = b.ActivitiesSubtotal
	l.KPIBonus = b.KPIBonus
	l.TotalCompensation = b.TotalCompensation
}

// =============================================================================
// APPROVAL EVENTS
// =============================================================================

// Action is the transition recorded by an ApprovalEvent.
type Action string

const (
	ActionSubmitted      Action = "submitted"
	ActionApproved       Action = "approved"
	ActionRejected       Action = "rejected"
	ActionEditedApproved Action = "edited_approved"
)

// ApprovalEvent is one append-only row of a launch's audit trail.
type ApprovalEvent struct {
	ID           string
	LaunchID     string
	Action       Action
	ActorID      string
	Timestamp    time.Time
	Observations *string
}

// =============================================================================
// QUERIES
// =============================================================================

// Filter narrows ListLaunches. Zero fields match everything.
type Filter struct {
	Status   Status
	WorkerID string
	Date     string
}

// Matches reports whether l passes the filter.
func (f Filter) Matches(l Launch) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.WorkerID != "" && l.WorkerID != f.WorkerID {
		return false
	}
	if f.Date != "" && l.Date != f.Date {
		return false
	}
	return true
}

// DailyLimit is the answer of the daily-limit probe.
type DailyLimit struct {
	LimitReached     bool
	CanLaunch        bool
	ExistingLaunchID string
	ExistingStatus   Status
}
