// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrInitiation is matched by every error returned when a search
	// session could not be created within the retry budget.
	ErrInitiation = errors.New("search initiation failed")

	// ErrPollTimeout is returned when the standard policy's attempt budget
	// runs out without any records.
	ErrPollTimeout = errors.New("timed out waiting for results")
)

// InitiationError carries the session that could not be created and the
// last attempt's error. It matches ErrInitiation with errors.Is.
type InitiationError struct {
	SessionID string
	Err       error
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("%v for session %s: %v", ErrInitiation, e.SessionID, e.Err)
}

func (e *InitiationError) Unwrap() []error {
	return []error{ErrInitiation, e.Err}
}

// StatusError reports a non-zero base_resp status code from the agent.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("agent status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("agent status %d", e.Code)
}
