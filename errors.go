package cmdsnap

import (
	"errors"

	"github.com/deixis/cmdsnap/internal/runner"
)

// Failure kinds. Every error returned by a Spawner matches exactly one of
// them with errors.Is.
var (
	// ErrInvalidInvocation means the value could not describe a process,
	// for example an empty Argv.
	ErrInvalidInvocation = errors.New("invalid invocation")
	// ErrSpawn means the operating system could not create the process.
	ErrSpawn = runner.ErrSpawn
	// ErrStdinWrite means the stdin payload could not be fully delivered.
	ErrStdinWrite = runner.ErrStdinWrite
	// ErrOutputCapture means stdout or stderr could not be read back.
	ErrOutputCapture = runner.ErrOutputCapture
)
