package cmdsnap

import (
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/deixis/cmdsnap/internal/runner"
)

// Info describes an invocation: what was, or was about to be, executed.
// It is built before the process starts, so a failed spawn still yields it.
type Info struct {
	Program string            `yaml:"program" json:"program"`
	Args    []string          `yaml:"args" json:"args"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"` // overrides only
	Stdin   *string           `yaml:"stdin,omitempty" json:"stdin,omitempty"`
}

// EnvPairs returns the environment overrides as KEY=VALUE, sorted by key.
func (i *Info) EnvPairs() []string {
	keys := make([]string, 0, len(i.Env))
	for k := range i.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]string, len(keys))
	for n, k := range keys {
		out[n] = k + "=" + i.Env[k]
	}
	return out
}

// String renders the invocation on one line, e.g. `echo 42 [A=1, B=2]`.
func (i *Info) String() string {
	var b strings.Builder
	b.WriteString(i.Program)
	for _, a := range i.Args {
		b.WriteByte(' ')
		b.WriteString(quoteArg(a))
	}
	if len(i.Env) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(i.EnvPairs(), ", "))
		b.WriteByte(']')
	}
	return b.String()
}

func quoteArg(a string) string {
	if a == "" || strings.ContainsAny(a, " \t\n\"'\\") {
		return strconv.Quote(a)
	}
	return a
}

var exeSuffix = func() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}()

// newInfo builds the descriptor for a process. Later overrides of the same
// key win; removals are recorded as empty values. A nil stdin leaves
// Info.Stdin unset.
func newInfo(path string, args []string, env []runner.EnvVar, stdin []byte) *Info {
	info := &Info{
		Program: describeProgram(path, exeSuffix),
		Args:    append([]string{}, args...),
	}
	for _, e := range env {
		if info.Env == nil {
			info.Env = make(map[string]string, len(env))
		}
		if e.Unset {
			info.Env[e.Key] = ""
			continue
		}
		info.Env[e.Key] = e.Value
	}
	if stdin != nil {
		s := lossy(stdin)
		info.Stdin = &s
	}
	return info
}

// describeProgram returns the final path component of path with suffix
// removed, so the same program is described identically on every platform.
func describeProgram(path, suffix string) string {
	name := filepath.Base(filepath.FromSlash(path))
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if suffix != "" && len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		name = name[:len(name)-len(suffix)]
	}
	return name
}
