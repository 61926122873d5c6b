package engine

import "fmt"

// ErrorKind classifies terminal run failures.
type ErrorKind int

const (
	// SnapshotLoadFailed means the reference snapshot could not be loaded
	// or failed cross-reference validation.
	SnapshotLoadFailed ErrorKind = iota
	// ScheduleLocked means another run holds the schedule's exclusive lock.
	ScheduleLocked
	// SinkWriteFailed means the run computed but its record could not be
	// persisted.
	SinkWriteFailed
	// Cancelled means the caller's context was cancelled mid-run.
	Cancelled
	// DeadlineExceeded means the run overran the configured deadline.
	DeadlineExceeded
)

// String returns a stable identifier for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case SnapshotLoadFailed:
		return "snapshot_load_failed"
	case ScheduleLocked:
		return "schedule_locked"
	case SinkWriteFailed:
		return "sink_write_failed"
	case Cancelled:
		return "cancelled"
	case DeadlineExceeded:
		return "deadline_exceeded"
	default:
		return "unknown"
	}
}

// RunError is the error type returned for failed runs.
type RunError struct {
	Kind ErrorKind
	Err  error
}

func (e *RunError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// maxErrLen bounds the error detail stored in a terminal run record.
const maxErrLen = 250

func truncateErr(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) <= maxErrLen {
		return s
	}
	return s[:maxErrLen]
}
