package vm

import "fmt"

// ExitCode is a script group's termination status. Zero is success; any
// other value is a ValidationFailure per spec.md §4.4.7.
type ExitCode int8

const ExitSuccess ExitCode = 0

// ValidationFailure wraps a non-zero exit code returned by a script group.
type ValidationFailure struct {
	Code ExitCode
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("script exited with code %d", e.Code)
}

// VMInternalError covers host-detected faults that are never a legitimate
// script outcome: bad instruction, out-of-bounds memory, malformed syscall
// arguments.
type VMInternalError struct {
	Reason string
}

func (e *VMInternalError) Error() string {
	return fmt.Sprintf("vm internal error: %s", e.Reason)
}

func errOOB(op string, offset uint64, size int, bound int) error {
	return &VMInternalError{Reason: fmt.Sprintf("%s out of bounds: offset=%d size=%d bound=%d", op, offset, size, bound)}
}

// ErrTooMuchCycles is returned when a script group exceeds its per-group
// cycle budget.
type ErrTooMuchCycles struct {
	Limit uint64
	Used  uint64
}

func (e *ErrTooMuchCycles) Error() string {
	return fmt.Sprintf("too much cycles: used %d, limit %d", e.Used, e.Limit)
}

// ErrDeadlockedProcesses is returned when every runnable process in a
// script tree is blocked and none can make progress (spec.md §4.4.5).
type ErrDeadlockedProcesses struct{}

func (e *ErrDeadlockedProcesses) Error() string { return "deadlocked processes" }

// ErrOutOfMemory is returned when spawn cannot satisfy its child's memory
// reservation from the transaction's shared budget (spec.md §4.4.3).
type ErrOutOfMemory struct{}

func (e *ErrOutOfMemory) Error() string { return "out of memory" }
