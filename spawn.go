package cmdsnap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/deixis/cmdsnap/internal/runner"
)

// Spawner is implemented by values that can be run as exactly one process.
//
// A nil stdin means no override: the value runs with whatever stdin it
// carries itself, or none. A non-nil stdin, even an empty one, is piped to
// the child and takes precedence over any payload bound to the value.
//
// Implementations return the Info whenever the invocation could be
// described, including when the process failed to start.
type Spawner interface {
	SpawnWithInfo(ctx context.Context, stdin []byte) (*Info, *Output, error)
}

// Argv is an argument list whose first element is the program.
type Argv []string

// SpawnWithInfo runs the program named by a[0] with the remaining elements
// as arguments.
func (a Argv) SpawnWithInfo(ctx context.Context, stdin []byte) (*Info, *Output, error) {
	if len(a) == 0 {
		return nil, nil, fmt.Errorf("%w: empty argument list", ErrInvalidInvocation)
	}
	return NewCommand(a[0], a[1:]...).SpawnWithInfo(ctx, stdin)
}

// WithStdin attaches a stdin payload to another Spawner. Create it with
// PassStdin.
type WithStdin struct {
	inner Spawner

	mu    sync.Mutex
	stdin []byte
}

// PassStdin returns s with stdin attached. The payload is copied.
func PassStdin[T ~string | ~[]byte](s Spawner, stdin T) *WithStdin {
	return &WithStdin{inner: s, stdin: append([]byte{}, []byte(stdin)...)}
}

// SpawnWithInfo hands the attached payload to the inner Spawner, or the
// override when one is given. The payload is consumed by the first call;
// later calls pipe an empty stdin.
func (w *WithStdin) SpawnWithInfo(ctx context.Context, stdin []byte) (*Info, *Output, error) {
	w.mu.Lock()
	taken := w.stdin
	w.stdin = []byte{}
	w.mu.Unlock()

	if stdin == nil {
		stdin = taken
	}
	return w.inner.SpawnWithInfo(ctx, stdin)
}

// ExecCmd adapts a configured *exec.Cmd. Its Path, Args, Env and Dir are
// used; its Stdin, Stdout and Stderr are ignored since the driver owns the
// child's stdio. Environment overrides are reported as the entries of
// cmd.Env that differ from the current process environment. A lookup
// failure recorded in cmd.Err is a spawn error.
func ExecCmd(cmd *exec.Cmd) Spawner {
	return execCmd{cmd: cmd}
}

type execCmd struct {
	cmd *exec.Cmd
}

func (c execCmd) SpawnWithInfo(ctx context.Context, stdin []byte) (*Info, *Output, error) {
	cmd := c.cmd
	if cmd == nil || cmd.Path == "" {
		return nil, nil, fmt.Errorf("%w: no program", ErrInvalidInvocation)
	}
	if cmd.Process != nil {
		return nil, nil, fmt.Errorf("%w: %s was already started", ErrInvalidInvocation, cmd.Path)
	}

	p := runner.Proc{Path: cmd.Path, Dir: cmd.Dir}
	if len(cmd.Args) > 1 {
		p.Args = cmd.Args[1:]
	}
	var overrides []runner.EnvVar
	if cmd.Env != nil {
		p.ClearEnv = true
		for _, kv := range cmd.Env {
			k, v, _ := strings.Cut(kv, "=")
			p.Env = append(p.Env, runner.EnvVar{Key: k, Value: v})
		}
		overrides = envDiff(os.Environ(), cmd.Env)
	}
	if cmd.Err != nil {
		// exec.Command could not resolve the program, e.g. exec.ErrDot.
		info := newInfo(p.Path, p.Args, overrides, stdin)
		return info, nil, &runner.Error{Kind: ErrSpawn, Program: cmd.Path, Err: cmd.Err}
	}
	return spawnProc(ctx, p, overrides, stdin)
}

// envDiff returns the changes that turn base into env.
func envDiff(base, env []string) []runner.EnvVar {
	want := make(map[string]string, len(env))
	var order []string
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		if _, ok := want[k]; !ok {
			order = append(order, k)
		}
		want[k] = v
	}
	have := make(map[string]string, len(base))
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		have[k] = v
	}

	var out []runner.EnvVar
	for _, k := range order {
		if v, ok := have[k]; !ok || v != want[k] {
			out = append(out, runner.EnvVar{Key: k, Value: want[k]})
		}
	}
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := want[k]; !ok {
			out = append(out, runner.EnvVar{Key: k, Unset: true})
		}
	}
	return out
}

// spawnProc describes and runs p. overrides are the environment changes
// reported in the Info.
func spawnProc(ctx context.Context, p runner.Proc, overrides []runner.EnvVar, stdin []byte) (*Info, *Output, error) {
	info := newInfo(p.Path, p.Args, overrides, stdin)
	r := &runner.Runner{Logger: loggerFrom(ctx)}
	res, err := r.Run(ctx, p, stdin)
	if err != nil {
		return info, nil, err
	}
	return info, newOutput(res), nil
}

type loggerKey struct{}

// withLogger returns ctx carrying the logger used for driver debug events.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFrom(ctx context.Context) *log.Logger {
	l, _ := ctx.Value(loggerKey{}).(*log.Logger)
	return l
}
