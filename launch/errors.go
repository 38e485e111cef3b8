package launch

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrLaunchNotFound is returned when no launch has the given ID.
	ErrLaunchNotFound = errors.New("launch not found")

	// ErrDailyLimitReached is returned when the worker already holds a
	// non-rejected launch for the date.
	ErrDailyLimitReached = errors.New("daily launch limit reached")

	// ErrInvalidTransition is returned when a launch is not pending.
	ErrInvalidTransition = errors.New("invalid launch transition")

	// ErrInvalidAction is returned for an unknown validation action.
	ErrInvalidAction = errors.New("invalid validation action")

	// ErrDuplicateActiveLaunch is returned by stores when an insert would
	// create a second non-rejected launch for a (worker, date).
	ErrDuplicateActiveLaunch = errors.New("duplicate active launch for worker and date")

	// ErrConcurrentModification is returned by stores when a conditional
	// update finds a status other than the expected one.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DailyLimitError names the launch that holds the (worker, date) slot.
type DailyLimitError struct {
	WorkerID         string
	Date             string
	ExistingLaunchID string
	ExistingStatus   Status
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily launch limit reached: worker %s already has launch %s (%s) for %s",
		e.WorkerID, e.ExistingLaunchID, e.ExistingStatus, e.Date)
}

func (e *DailyLimitError) Unwrap() error {
	return ErrDailyLimitReached
}

// Guidance tells the worker when a new submission becomes possible.
func (e *DailyLimitError) Guidance() string {
	if e.ExistingStatus == StatusPending {
		return fmt.Sprintf("a launch for %s is waiting for review; you can submit again only if it is rejected", e.Date)
	}
	return fmt.Sprintf("the launch for %s was already %s; only one launch per day is allowed", e.Date, e.ExistingStatus)
}

// TransitionError reports an action attempted on a launch that is not pending.
type TransitionError struct {
	LaunchID      string
	Action        Action
	CurrentStatus Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to launch %s: status is %s, only pending launches can be reviewed",
		e.Action, e.LaunchID, e.CurrentStatus)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the launch does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLaunchNotFound)
}

// IsConflict returns true for business-rule rejections of the lifecycle and
// for submissions that lost a race and may be retried.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDailyLimitReached) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConcurrentModification)
}
