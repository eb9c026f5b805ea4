package model

import (
	"fmt"
	"time"
)

// TransportError wraps a network-level or HTTP-status failure so retry
// logic can inspect it. StatusCode is zero when the request never
// produced a response.
type TransportError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("transport: status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport: status %d", e.StatusCode)
	default:
		return fmt.Sprintf("transport: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError marks a response body that could not be parsed where
// structured data was expected. Retrying cannot fix a malformed
// payload, so these are never retried.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PersistError marks a failed write of one durable artifact. The run
// that produced it is otherwise complete; the caller decides whether
// that makes the run a failure.
type PersistError struct {
	Op   string // "write registry", "write snapshot", ...
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
