package cmdsnap

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/deixis/cmdsnap/internal/config"
	"github.com/deixis/cmdsnap/internal/golden"
	"github.com/deixis/cmdsnap/internal/snapshot"
)

const defaultLibraryLogLevel = log.WarnLevel

// env holds what a test binary needs from its surroundings: the loaded
// configuration and the shared snapshot engine.
type env struct {
	cfg    *config.Config
	root   string
	level  log.Level
	engine *golden.Engine
}

var loadEnv = sync.OnceValues(func() (*env, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	res, err := config.Load(wd)
	if err != nil {
		return nil, err
	}
	level := defaultLibraryLogLevel
	if v := os.Getenv(config.EnvLog); v != "" {
		if level, err = log.ParseLevel(v); err != nil {
			return nil, fmt.Errorf("%s: %w", config.EnvLog, err)
		}
	}
	return &env{
		cfg:    res.Config,
		root:   res.RepoRoot,
		level:  level,
		engine: golden.New(res.Config, level),
	}, nil
})

func mustEnv(t testing.TB) *env {
	t.Helper()
	e, err := loadEnv()
	if err != nil {
		t.Fatalf("cmdsnap: loading configuration: %v", err)
	}
	return e
}

// Spawn runs s once and returns what was executed and what it produced.
// Any failure to run s fails the test immediately. A non-zero exit is not
// a failure.
func Spawn(t testing.TB, s Spawner) (*Info, *Output) {
	t.Helper()
	e := mustEnv(t)
	ctx := withLogger(t.Context(), golden.TestLogger(t, e.level))
	info, out, err := s.SpawnWithInfo(ctx, nil)
	if err != nil {
		if info != nil {
			t.Fatalf("cmdsnap: running %s: %v", info, err)
		} else {
			t.Fatalf("cmdsnap: %v", err)
		}
	}
	return info, out
}

// AssertCmdSnapshot runs s and compares the rendered output against the
// test's next positional snapshot.
func AssertCmdSnapshot(t testing.TB, s Spawner) {
	t.Helper()
	info, out := Spawn(t, s)
	mustEnv(t).engine.Anonymous(t, Render(out), metaFor(info))
}

// AssertNamedCmdSnapshot runs s and compares the rendered output against the
// snapshot called name.
func AssertNamedCmdSnapshot(t testing.TB, name string, s Spawner) {
	t.Helper()
	info, out := Spawn(t, s)
	mustEnv(t).engine.Named(t, name, Render(out), metaFor(info))
}

// AssertInlineCmdSnapshot runs s and compares the rendered output against
// expected. Common indentation and a leading newline of expected are ignored,
// so the literal can be indented with the surrounding code.
func AssertInlineCmdSnapshot(t testing.TB, s Spawner, expected string) {
	t.Helper()
	_, out := Spawn(t, s)
	mustEnv(t).engine.Inline(t, Render(out), expected)
}

func metaFor(info *Info) snapshot.Meta {
	return snapshot.Meta{Expression: info.String(), Info: info}
}
