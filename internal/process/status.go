package process

import "fmt"

// State is the lifecycle state of a supervised process.
type State int

const (
	StateRunning State = iota
	StateExited
	StateKilled
)

// Status is the termination status of a process.
type Status struct {
	State State
	// Code is the exit code for StateExited and -1 otherwise.
	Code int
	// Signal names the terminating signal for StateKilled, e.g. "SIGKILL".
	Signal string
}

// Exited reports whether the process ended normally with the given code.
func (s Status) Exited(code int) bool {
	return s.State == StateExited && s.Code == code
}

func (s Status) String() string {
	switch s.State {
	case StateRunning:
		return "running"
	case StateExited:
		return fmt.Sprintf("exited(%d)", s.Code)
	case StateKilled:
		return fmt.Sprintf("killed(%s)", s.Signal)
	default:
		return fmt.Sprintf("State(%d)", int(s.State))
	}
}
