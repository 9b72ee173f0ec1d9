package llm

import (
	"errors"
	"fmt"
)

// ErrNoCredential indicates no API credential is configured. The client
// constructor fails with this; a call is never attempted without one.
var ErrNoCredential = errors.New("llm: no API credential configured")

// TransportError indicates the endpoint could not be reached, including
// timeouts. Distinct from UpstreamError so callers can tell "could not
// reach" from "reached but rejected".
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError indicates the endpoint returned a non-success status.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm upstream error (status %d): %v", e.Status, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// EmptyResponseError indicates the call succeeded but yielded no usable text.
type EmptyResponseError struct{}

func (e *EmptyResponseError) Error() string {
	return "llm returned an empty response"
}
