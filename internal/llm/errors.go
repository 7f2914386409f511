package llm

import (
	"errors"
	"fmt"
)

// ErrNoWorkingModel is returned when every candidate model is rejected
// by the remote service during probing.
var ErrNoWorkingModel = errors.New("llm: no working model found")

// TransportError means the remote service rejected the initial request.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("llm: request failed: status %d", e.Status)
	}
	return fmt.Sprintf("llm: request failed: status %d: %s", e.Status, e.Body)
}

// StreamReadError means the byte stream terminated abnormally mid-read.
type StreamReadError struct {
	Err error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("llm: stream read failed: %v", e.Err)
}

func (e *StreamReadError) Unwrap() error { return e.Err }
