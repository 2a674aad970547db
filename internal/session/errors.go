package session

import "fmt"

// MalformedSessionError reports parser output that violates a Session
// invariant: unsorted or overlapping epoch intervals, unsorted spike
// trains, timestamps outside the declared time support, or mismatched
// trace/footprint shapes. It indicates a parser bug or corrupt source
// data, never a transient condition.
type MalformedSessionError struct {
	Dir    string // session directory
	Tag    string // format tag
	Reason string
	Err    error // optional cause
}

func (e *MalformedSessionError) Error() string {
	msg := fmt.Sprintf("malformed session %q (format %s): %s", e.Dir, e.Tag, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedSessionError) Unwrap() error { return e.Err }
