// Package hazard fits per-transition survival models over rating episodes
// and provides the deterministic fallback hazard used when a fit is not
// possible or not trustworthy.
package hazard

import (
	"errors"
	"math"
)

// Recovered conditions. None of these reach a scoring caller; they are
// carried as fallback reasons.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrDegenerateModel  = errors.New("degenerate model output")
	ErrNotConverged     = errors.New("regression did not converge")
)

// Status tags how a hazard value was produced.
type Status int

const (
	StatusOK Status = iota
	StatusFallback
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFallback:
		return "fallback"
	case StatusInvalid:
		return "invalid"
	}
	return "unknown"
}

// Result is a cumulative hazard and the matching transition probability.
// Invalid results carry only a reason.
type Result struct {
	Status           Status
	CumulativeHazard float64
	Probability      float64
	Reason           string
}

// OK wraps a well-behaved fitted prediction.
func OK(lambda, p float64) Result {
	return Result{Status: StatusOK, CumulativeHazard: lambda, Probability: p}
}

// FallbackUsed wraps a fallback estimate.
func FallbackUsed(lambda, p float64, reason string) Result {
	return Result{Status: StatusFallback, CumulativeHazard: lambda, Probability: p, Reason: reason}
}

// Invalid marks a prediction that must not be used.
func Invalid(reason string) Result {
	return Result{Status: StatusInvalid, Reason: reason}
}

// Usable reports whether the result carries a value.
func (r Result) Usable() bool {
	return r.Status != StatusInvalid
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
