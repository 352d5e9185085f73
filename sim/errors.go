package sim

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks across the error taxonomy.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrDomain             = errors.New("domain error")
	ErrInvariantViolation = errors.New("runtime invariant violation")
)

// ConfigurationError reports an invalid simulation parameter.
// Returned before any event is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func configErrorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DomainError reports a utility evaluated outside its mathematical domain (x <= 0).
type DomainError struct {
	X     float64
	Alpha float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("utility undefined at share %g (alpha=%g)", e.X, e.Alpha)
}

func (e *DomainError) Unwrap() error { return ErrDomain }

// Snapshot is the state dump attached to an InvariantViolation.
type Snapshot struct {
	Clock       float64
	Price       float64
	Bids        map[PlayerID]float64
	Allocations map[PlayerID]float64
}

// InvariantViolation signals a logic fault (negative bid, over-allocation).
// It aborts the run.
type InvariantViolation struct {
	Reason   string
	Snapshot Snapshot
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated at t=%.6f: %s (price=%g, bids=%v, allocations=%v)",
		e.Snapshot.Clock, e.Reason, e.Snapshot.Price, e.Snapshot.Bids, e.Snapshot.Allocations)
}

func (e *InvariantViolation) Unwrap() error { return ErrInvariantViolation }
