package llm

import (
	"context"
	"errors"
	"fmt"
)

// RemoteServiceError is returned when an upstream endpoint answers with a
// non-success status.
type RemoteServiceError struct {
	Service string
	Code    int // HTTP status code
	Message string
}

func (e *RemoteServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.Code, e.Message)
}

// ErrMissingCredential is the sentinel matched by MissingCredentialError.
var ErrMissingCredential = errors.New("no xAI API key configured")

// MissingCredentialError reports that an online call was attempted without
// a credential.
type MissingCredentialError struct {
	Hint string
}

func (e *MissingCredentialError) Error() string {
	if e.Hint == "" {
		return ErrMissingCredential.Error()
	}
	return ErrMissingCredential.Error() + " (" + e.Hint + ")"
}

func (e *MissingCredentialError) Is(target error) bool {
	return target == ErrMissingCredential
}

// AbortedError wraps a context cancellation or deadline.
type AbortedError struct {
	Cause error
}

func (e *AbortedError) Error() string {
	return "request aborted: " + e.Cause.Error()
}

func (e *AbortedError) Unwrap() error { return e.Cause }

// asAborted returns an AbortedError when err stems from ctx, else nil.
func asAborted(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &AbortedError{Cause: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &AbortedError{Cause: ctxErr}
	}
	return nil
}

// StatusCode extracts the upstream HTTP status from err, or 0.
func StatusCode(err error) int {
	var rse *RemoteServiceError
	if errors.As(err, &rse) {
		return rse.Code
	}
	return 0
}
