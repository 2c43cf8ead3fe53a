package runner

// Result holds the output of a command execution.
type Result struct {
	RunID    string // unique identifier for this run
	Success  bool   // process exited with status 0
	ExitCode int    // process exit code, or ExitCodeUnknown
	Stdout   []byte // captured stdout, fully drained
	Stderr   []byte // captured stderr, fully drained
}

// ExitCodeUnknown is reported when the process ended without an exit code,
// for example when it was killed by a signal. It is all bits set in a
// signed 32-bit integer.
const ExitCodeUnknown = ^0
