package runner

import (
	"errors"
	"fmt"
)

// Failure kinds reported through Error.Kind.
var (
	// ErrSpawn means the operating system could not create the process.
	ErrSpawn = errors.New("spawn failed")
	// ErrStdinWrite means the payload could not be fully delivered to stdin.
	ErrStdinWrite = errors.New("stdin write failed")
	// ErrOutputCapture means stdout or stderr could not be read back.
	ErrOutputCapture = errors.New("output capture failed")
)

// Error describes a failed run. It matches both its Kind and the underlying
// cause with errors.Is.
type Error struct {
	Kind    error
	RunID   string
	Program string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Program, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
