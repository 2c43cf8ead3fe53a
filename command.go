package cmdsnap

import (
	"context"
	"fmt"

	"github.com/deixis/cmdsnap/internal/runner"
)

// Command is a configured process invocation. Methods return the receiver
// so calls can be chained:
//
//	cmd := cmdsnap.NewCommand("git", "status").Env("GIT_PAGER", "").Dir(repo)
type Command struct {
	program  string
	args     []string
	env      []runner.EnvVar
	clearEnv bool
	dir      string
}

// NewCommand returns a Command running program with args.
func NewCommand(program string, args ...string) *Command {
	return &Command{program: program, args: append([]string{}, args...)}
}

// Arg appends one argument.
func (c *Command) Arg(arg string) *Command {
	c.args = append(c.args, arg)
	return c
}

// Args appends arguments.
func (c *Command) Args(args ...string) *Command {
	c.args = append(c.args, args...)
	return c
}

// Env sets an environment variable for the child.
func (c *Command) Env(key, value string) *Command {
	c.env = append(c.env, runner.EnvVar{Key: key, Value: value})
	return c
}

// EnvRemove removes key from the child's environment.
func (c *Command) EnvRemove(key string) *Command {
	c.env = append(c.env, runner.EnvVar{Key: key, Unset: true})
	return c
}

// EnvClear discards the inherited environment and any overrides set so far.
func (c *Command) EnvClear() *Command {
	c.env = nil
	c.clearEnv = true
	return c
}

// Dir sets the child's working directory.
func (c *Command) Dir(dir string) *Command {
	c.dir = dir
	return c
}

// Program returns the configured program.
func (c *Command) Program() string { return c.program }

// Describe returns the Info the command would report if spawned without
// stdin.
func (c *Command) Describe() *Info {
	return newInfo(c.program, c.args, c.env, nil)
}

// SpawnWithInfo runs the command once.
func (c *Command) SpawnWithInfo(ctx context.Context, stdin []byte) (*Info, *Output, error) {
	if c.program == "" {
		return nil, nil, fmt.Errorf("%w: empty program", ErrInvalidInvocation)
	}
	p := runner.Proc{
		Path:     c.program,
		Args:     c.args,
		Env:      c.env,
		ClearEnv: c.clearEnv,
		Dir:      c.dir,
	}
	return spawnProc(ctx, p, c.env, stdin)
}
