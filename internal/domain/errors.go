package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no test session has been started for the client.
	ErrSessionNotFound = errors.New("test session not found")
	// ErrSessionNotStarted is returned when answers arrive before questions were drawn.
	ErrSessionNotStarted = errors.New("test session has no question set")
	// ErrQuestionNotFound indicates an answered question ID is not part of the drawn set.
	ErrQuestionNotFound = errors.New("question not found in drawn set")
	// ErrSectionTooSmall indicates a bank section cannot cover a full draw.
	ErrSectionTooSmall = errors.New("section pool too small")
	// ErrBankShape indicates the bank does not carry the expected section layout.
	ErrBankShape = errors.New("question bank has unexpected shape")
)

// CodeTestUnavailable is the server code for a submission rejected by the
// retest cooldown.
const CodeTestUnavailable = "TestUnavailableNow"

// SubmitError is a server-reported submission failure with a machine-readable
// code. The rate-limit case is distinguished by CodeTestUnavailable; every
// other code is a generic, retryable failure whose message is shown verbatim.
type SubmitError struct {
	Code    string
	Message string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit rejected (%s): %s", e.Code, e.Message)
}

// RateLimited reports whether the failure is the server retest cooldown.
func (e *SubmitError) RateLimited() bool {
	return e.Code == CodeTestUnavailable
}
