package assignment

import (
	"errors"
	"fmt"
)

// Phase names the saga step a run is in. A failed run reports the phase it
// died in together with how far the plan got, which is everything a caller
// needs to decide on a retry.
type Phase string

const (
	PhaseFetching  Phase = "fetching"
	PhaseDemoting  Phase = "demoting"
	PhasePromoting Phase = "promoting"
	PhaseCommitted Phase = "committed"
)

// ErrNoDefaultSet marks the degraded-but-safe state where every previous
// default was demoted and the new one never got promoted. Zero defaults is the
// intended failure direction; two defaults never happens.
var ErrNoDefaultSet = errors.New("no default company currently set")

// StepError reports which pipeline step failed and the partial progress made
// before it did. Individual steps are not idempotent, but re-running the whole
// pipeline from a fresh snapshot is, so callers may retry the operation as a
// whole.
type StepError struct {
	Phase              Phase
	CompletedDemotions int
	PlannedDemotions   int

	// StatusCode holds the store's HTTP status when one was received; 404 and
	// 409 indicate another writer touched the records between our read and
	// this write.
	StatusCode int

	// NoDefaultSet is true when the failed run verifiably left the user with
	// zero default associations.
	NoDefaultSet bool

	Err error
}

func (e *StepError) Error() string {
	switch e.Phase {
	case PhaseFetching:
		return fmt.Sprintf("fetching associations: %v", e.Err)
	case PhaseDemoting:
		return fmt.Sprintf("demotion %d of %d failed: %v", e.CompletedDemotions+1, e.PlannedDemotions, e.Err)
	default:
		return fmt.Sprintf("promotion failed after %d demotions: %v", e.CompletedDemotions, e.Err)
	}
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNoDefaultSet) detect the distinguished
// zero-defaults outcome without a separate error type.
func (e *StepError) Is(target error) bool {
	return target == ErrNoDefaultSet && e.NoDefaultSet
}

// Conflict reports whether the store rejected a write because the snapshot
// went stale underneath us. Safe to retry from scratch.
func (e *StepError) Conflict() bool {
	return e.StatusCode == 404 || e.StatusCode == 409
}
