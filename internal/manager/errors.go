package manager

import (
	"errors"
	"fmt"
)

// ErrManagerClosed reports an operation against a manager that has been shut
// down. Once Close runs, no new process may be spawned.
var ErrManagerClosed = errors.New("session manager is closed")

// InvalidPathError reports a log directory that does not exist or is not a
// directory. It surfaces before any process is spawned or state mutated.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	if e.Path == "" {
		return "invalid log path: " + e.Reason
	}
	return fmt.Sprintf("invalid log path %q: %s", e.Path, e.Reason)
}

// PortExhaustionError reports that no free port was found in the configured
// range within the bounded attempt count.
type PortExhaustionError struct {
	Low      int
	High     int
	Attempts int
}

func (e *PortExhaustionError) Error() string {
	return fmt.Sprintf("no free port in [%d, %d) after %d attempts", e.Low, e.High, e.Attempts)
}

// SpawnError reports a TensorBoard process that could not be launched or
// exited during the startup grace window. The session is left in the
// crashed state so the user can edit and retry.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a stale session id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}
