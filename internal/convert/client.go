// Package convert drives batches of file conversions against a remote
// conversion service: a bounded pool of per-file tasks, live progress
// reporting to the dashboard, and cooperative shutdown.
package convert

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Client is the narrow surface the batch needs from a remote conversion
// service. Implementations must allow concurrent Submit/Poll/Download calls
// and an idempotent Close that unblocks in-flight calls where feasible.
type Client interface {
	Submit(spec IOSpec) (Job, error)
	Close() error
}

// Job is a handle to one remote conversion created by Submit.
type Job interface {
	// Poll asks the service whether the conversion has finished and, once
	// done, whether it succeeded.
	Poll() (Status, error)
	// Download streams the converted output to the job's output path.
	Download() error
}

// Status is the result of a poll.
type Status struct {
	Done bool
	OK   bool
}

// IOSpec describes one input/output file pair for a conversion.
type IOSpec struct {
	InputPath    string
	OutputPath   string
	InputFormat  string // optional hint, empty means auto-detect
	OutputFormat string
}

// InputFilename returns the display name of the input file.
func (s IOSpec) InputFilename() string {
	return filepath.Base(s.InputPath)
}

// OutputFilename returns the display name of the output file.
func (s IOSpec) OutputFilename() string {
	return filepath.Base(s.OutputPath)
}

// ErrInputNotFound reports that the remote service no longer knows the
// uploaded input.
var ErrInputNotFound = errors.New("input not found on conversion server")

// NetworkError wraps a transport-level failure talking to the service.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteError is an error reported by the conversion service itself.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}
