// Package runner executes a single process to completion, optionally feeding
// it a stdin payload, and captures its exit status and output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner executes processes and captures their output.
type Runner struct {
	Logger *log.Logger // optional; debug events are dropped when nil
}

// Proc is a fully resolved process configuration.
type Proc struct {
	Path     string   // executable path, resolved via PATH when it has no separator
	Args     []string // arguments, excluding the program name
	Env      []EnvVar // overrides applied in order on top of the base environment
	ClearEnv bool     // start from an empty base environment
	Dir      string   // working directory; empty means the caller's
}

// EnvVar is a single environment override. Unset removes Key from the
// child's environment.
type EnvVar struct {
	Key   string
	Value string
	Unset bool
}

var discard = log.New(io.Discard)

// Run starts p, waits for it to exit and returns its status and output.
//
// When stdin is non-nil, the child's stdin is a pipe fed by a dedicated
// goroutine which closes the pipe once the payload is written. Output is
// drained concurrently while the payload is written, so a child that fills
// its stdout before reading stdin cannot deadlock the call.
//
// Run holds the read end of the stdin pipe until the child exits. Writes
// therefore never race the child's exit: whatever the child left unread is
// drained afterwards, and any unread byte fails the run with ErrStdinWrite.
// A child that ignores a non-empty payload always fails this way.
//
// A non-zero exit is not an error. Errors are always *Error.
func (r *Runner) Run(ctx context.Context, p Proc, stdin []byte) (*Result, error) {
	if p.Path == "" {
		return nil, &Error{Kind: ErrSpawn, Err: errors.New("empty program path")}
	}

	runID := uuid.New().String()
	logger := r.logger().With("run_id", runID, "program", p.Path)

	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = p.environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	var pr, pw *os.File
	if stdin != nil {
		var err error
		pr, pw, err = os.Pipe()
		if err != nil {
			return nil, &Error{Kind: ErrSpawn, RunID: runID, Program: p.Path, Err: err}
		}
		cmd.Stdin = pr
	}

	logger.Debug("spawning", "args", p.Args, "stdin_bytes", len(stdin))
	if err := cmd.Start(); err != nil {
		if pr != nil {
			pr.Close()
			pw.Close()
		}
		return nil, &Error{Kind: ErrSpawn, RunID: runID, Program: p.Path, Err: err}
	}

	var writer errgroup.Group
	if pw != nil {
		writer.Go(func() error {
			return writeAndClose(pw, stdin)
		})
	}

	// Wait returns only once the process has exited and both output
	// buffers have been fully copied.
	waitErr := cmd.Wait()
	if pr != nil {
		if err := drainStdin(pr, &writer, len(stdin)); err != nil {
			return nil, &Error{Kind: ErrStdinWrite, RunID: runID, Program: p.Path, Err: err}
		}
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &Error{Kind: ErrOutputCapture, RunID: runID, Program: p.Path, Err: waitErr}
		}
	}

	state := cmd.ProcessState
	res := &Result{
		RunID:    runID,
		Success:  state.Success(),
		ExitCode: state.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	if res.ExitCode < 0 {
		res.ExitCode = ExitCodeUnknown
	}
	logger.Debug("exited", "exit_code", res.ExitCode, "stdout_bytes", len(res.Stdout), "stderr_bytes", len(res.Stderr))
	return res, nil
}

// drainStdin reads back whatever the exited child left in the pipe, which
// also unblocks a writer stuck on a full pipe, then joins the writer.
func drainStdin(r *os.File, writer *errgroup.Group, total int) error {
	unread, err := io.Copy(io.Discard, r)
	r.Close()
	if werr := writer.Wait(); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	if unread > 0 {
		return fmt.Errorf("process exited with %d of %d stdin bytes unread", unread, total)
	}
	return nil
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return discard
}

// writeAndClose writes the whole payload and closes w so the child sees
// end of input.
func writeAndClose(w io.WriteCloser, payload []byte) error {
	_, err := w.Write(payload)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

// environ returns the child's environment, or nil to inherit the parent's
// unchanged.
func (p Proc) environ() []string {
	if len(p.Env) == 0 && !p.ClearEnv {
		return nil
	}
	var base []string
	if !p.ClearEnv {
		base = os.Environ()
	}
	return MergeEnv(base, p.Env)
}

// MergeEnv applies overrides to base, a list of KEY=VALUE entries. Existing
// keys keep their position; new keys are appended in override order. The
// result is never nil.
func MergeEnv(base []string, overrides []EnvVar) []string {
	vals := make(map[string]string, len(base)+len(overrides))
	seen := make(map[string]bool, len(base)+len(overrides))
	var keys []string
	set := func(k, v string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
		vals[k] = v
	}

	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		set(k, v)
	}
	for _, o := range overrides {
		if o.Unset {
			delete(vals, o.Key)
			continue
		}
		set(o.Key, o.Value)
	}

	out := make([]string, 0, len(vals))
	for _, k := range keys {
		if v, ok := vals[k]; ok {
			out = append(out, k+"="+v)
		}
	}
	return out
}
