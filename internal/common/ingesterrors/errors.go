// Package ingesterrors contains the error types returned by the ingest core and its collaborators.
// Callers are expected to look through wrapped chains with errors.As rather than compare error strings.
//
// If multiple errors occur in some function (e.g., several resources fail to close), that
// function should return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package ingesterrors

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrAlreadyExists is a generic error to be returned whenever some resource already exists.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrAlreadyExists struct {
	Type    string // Resource type, e.g., "job"
	Value   string // Resource name, e.g., the file id
	Message string // An optional message to include in the error message
}

func (err *ErrAlreadyExists) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q already exists", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q already exists", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
//
// See ErrAlreadyExists for more info.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "maxParallelOperations"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %v is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// ErrAdmissionInterrupted is returned when a producer blocked waiting for a free slot is cancelled.
// The producer cannot make progress after this, so it is fatal for an ingest run.
type ErrAdmissionInterrupted struct {
	JobId    string
	InFlight int
	Err      error
}

func (err *ErrAdmissionInterrupted) Error() string {
	return fmt.Sprintf("admission of job %q interrupted with %d operations in flight: %v", err.JobId, err.InFlight, err.Err)
}

func (err *ErrAdmissionInterrupted) Unwrap() error {
	return err.Err
}

// ErrDrainTimeout is returned when in-flight operations are still outstanding once the drain window closes.
// Stragglers holds the ids of those operations; each of them has already been reported as a failure.
type ErrDrainTimeout struct {
	Timeout    time.Duration
	Stragglers []string
}

func (err *ErrDrainTimeout) Error() string {
	return fmt.Sprintf("timeout (%s) waiting for last files (%s) to complete", err.Timeout, strings.Join(err.Stragglers, ", "))
}

// ErrLocatorAborted is returned when fetching stopped after too many locator errors in a row, so some
// files may never have been seen. Whatever was submitted before that has still been drained.
type ErrLocatorAborted struct {
	ConsecutiveErrors int
	Err               error
}

func (err *ErrLocatorAborted) Error() string {
	return fmt.Sprintf("gave up fetching files after %d consecutive locator errors: %v", err.ConsecutiveErrors, err.Err)
}

func (err *ErrLocatorAborted) Unwrap() error {
	return err.Err
}

// Exit codes used by the command line when a run ends in error.
const (
	ExitCodeOk              = 0
	ExitCodeUnknown         = 1
	ExitCodeInvalidArgument = 2
	ExitCodeDrainTimeout    = 3
	ExitCodeInterrupted     = 4
	ExitCodeLocatorAborted  = 5
)

// ExitCodeFromError maps error types to process exit codes.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitCodeOk
	}

	// Using {} scopes just to re-use the "e" variable name for each case.
	{
		var e *ErrDrainTimeout
		if errors.As(err, &e) {
			return ExitCodeDrainTimeout
		}
	}
	{
		var e *ErrAdmissionInterrupted
		if errors.As(err, &e) {
			return ExitCodeInterrupted
		}
	}
	{
		var e *ErrLocatorAborted
		if errors.As(err, &e) {
			return ExitCodeLocatorAborted
		}
	}
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return ExitCodeInvalidArgument
		}
	}

	return ExitCodeUnknown
}
