package services

import "fmt"

// ValidationError reports malformed or missing client input. Never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown bounty id or management token.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// AuthorizationError reports an ownership mismatch on a mutation.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// ConflictError reports an already-closed bounty on a close attempt.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// UpstreamFetchError reports that the external bounty board was unreachable
// or returned a non-success status. It aborts a whole sync run.
type UpstreamFetchError struct {
	Err error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("failed to fetch external bounties: %v", e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// MappingError reports that a single external record failed to convert into
// the local schema. Scoped to that record; the sync run continues.
type MappingError struct {
	Title string
	Err   error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("failed to map external bounty %q: %v", e.Title, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}
