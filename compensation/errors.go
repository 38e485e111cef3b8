/*
errors.go - Error types for the calculation engine

ERROR CATEGORIES:
  1. Input validation - bad or missing values, wrong request shape for a role
  2. Reference data  - activity without tiers (fatal to the calculation)

  None of these are system failures. Handlers map them to 4xx responses and
  never log them as errors.

USAGE:
  breakdown, err := calc.Calculate(ctx, req)
  var nf *compensation.ActivityNotFoundError
  if errors.As(err, &nf) {
      // tell the user which activity is missing from the tier table
  }

SEE ALSO:
  - calculator.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package compensation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrActivityNotFound is returned when an activity has no tiers.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrDivisionByZero is returned when an activity reports zero or missing hours.
	ErrDivisionByZero = errors.New("hours worked must be greater than zero")

	// ErrInvalidRoleRequest is returned when the request shape does not match
	// the branch of the stated role.
	ErrInvalidRoleRequest = errors.New("request does not match role")

	// ErrInvalidInput is returned for missing or out-of-range values.
	ErrInvalidInput = errors.New("invalid calculation input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ActivityNotFoundError names the activity that has no tiers.
type ActivityNotFoundError struct {
	ActivityName string
}

func (e *ActivityNotFoundError) Error() string {
	return fmt.Sprintf("activity not found: %q has no productivity tiers", e.ActivityName)
}

func (e *ActivityNotFoundError) Unwrap() error {
	return ErrActivityNotFound
}

// DivisionByZeroError names the activity whose hours are zero or missing.
type DivisionByZeroError struct {
	ActivityName string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("cannot compute productivity for %q: hours worked must be greater than zero", e.ActivityName)
}

func (e *DivisionByZeroError) Unwrap() error {
	return ErrDivisionByZero
}

// InvalidRoleRequestError explains which shape the role expected.
type InvalidRoleRequestError struct {
	Role     string
	Branch   Branch
	Expected string
}

func (e *InvalidRoleRequestError) Error() string {
	return fmt.Sprintf("invalid request for role %q (%s): %s", e.Role, e.Branch, e.Expected)
}

func (e *InvalidRoleRequestError) Unwrap() error {
	return ErrInvalidRoleRequest
}

// InputError is a field-level validation failure.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDivisionByZero) ||
		errors.Is(err, ErrInvalidRoleRequest) ||
		errors.Is(err, ErrInvalidInput)
}

// IsReferenceDataError returns true if the admin-owned tables cannot serve the request.
func IsReferenceDataError(err error) bool {
	return errors.Is(err, ErrActivityNotFound)
}
