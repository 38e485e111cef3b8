package launch

import "context"

// =============================================================================
// STORE - Persistence contract for launches and their audit trail
// =============================================================================

// Store persists launches and approval events.
//
// There is no Delete. Writes that change a launch always append an event
// in the same atomic step.
type Store interface {
	// FindActiveLaunch returns the non-rejected launch of a (worker, date),
	// or nil when the slot is free.
	FindActiveLaunch(ctx context.Context, workerID, date string) (*Launch, error)

	// CreateLaunch inserts a launch and its first event atomically.
	// Returns ErrDuplicateActiveLaunch when the slot is already taken.
	CreateLaunch(ctx context.Context, l Launch, ev ApprovalEvent) error

	// GetLaunch returns ErrLaunchNotFound for an unknown ID.
	GetLaunch(ctx context.Context, id string) (Launch, error)

	// UpdateLaunch replaces a launch if its stored status still equals
	// expected, and appends ev. Returns ErrConcurrentModification otherwise.
	UpdateLaunch(ctx context.Context, l Launch, expected Status, ev ApprovalEvent) error

	// ListLaunches returns matching launches, oldest first.
	ListLaunches(ctx context.Context, f Filter) ([]Launch, error)

	// ListEvents returns the audit trail of a launch, oldest first.
	ListEvents(ctx context.Context, launchID string) ([]ApprovalEvent, error)
}

// Metrics receives lifecycle counters. telemetry.Recorder implements it.
type Metrics interface {
	RecordTransition(ctx context.Context, action, status string)
	RecordDailyLimitRejection(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) RecordTransition(context.Context, string, string) {}
func (nopMetrics) RecordDailyLimitRejection(context.Context)        {}
