package optimizer

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed catalog records or configuration values
// that violate a stated invariant. Fatal, no retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConfigurationError reports contradictory user overrides, such as a player
// that is both locked and excluded, or a locked player missing from the
// catalog. Raised while building, before any solve attempt.
type ConfigurationError struct {
	Player string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Player != "" {
		return fmt.Sprintf("configuration conflict for player %q: %s", e.Player, e.Reason)
	}
	return fmt.Sprintf("configuration conflict: %s", e.Reason)
}

func NewConfigurationError(player, reason string) *ConfigurationError {
	return &ConfigurationError{Player: player, Reason: reason}
}

// InfeasibleError signals that no assignment satisfies the current
// constraint system. Recoverable per lineup; the batch records the gap and
// continues.
type InfeasibleError struct {
	LineupNumber int
}

func (e *InfeasibleError) Error() string {
	if e.LineupNumber > 0 {
		return fmt.Sprintf("no feasible lineup for request %d under current constraints", e.LineupNumber)
	}
	return "no feasible lineup under current constraints"
}

// SolverError wraps a solver-internal fault (numerical failure, resource
// exhaustion). Fatal for the whole batch and never downgraded to a gap.
type SolverError struct {
	Err error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver failure: %v", e.Err)
}

func (e *SolverError) Unwrap() error {
	return e.Err
}

// IsInfeasible reports whether err is an infeasibility signal.
func IsInfeasible(err error) bool {
	var ie *InfeasibleError
	return errors.As(err, &ie)
}

// IsConfigurationError reports whether err is a configuration conflict.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
