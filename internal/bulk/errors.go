package bulk

import (
	"errors"
	"fmt"
)

var (
	// ErrRunActive is returned by Start while a previous run is still executing.
	ErrRunActive = errors.New("bulk: a run is already active")
	// ErrNoCombinations is returned by Start when the run has nothing to do.
	ErrNoCombinations = errors.New("bulk: no combinations to generate")
)

// FailureKind classifies why one generation attempt failed.
type FailureKind string

const (
	FailurePromptBuild FailureKind = "prompt_build"
	FailureBackendCall FailureKind = "backend_call"
	FailureEmptyResult FailureKind = "empty_result"
	FailureSave        FailureKind = "save"
)

// AttemptError wraps an attempt failure with its classification.
type AttemptError struct {
	Kind FailureKind
	Err  error
}

func (e *AttemptError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation failed (%s)", e.Kind)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }
