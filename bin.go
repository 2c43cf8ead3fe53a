package cmdsnap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/deixis/cmdsnap/internal/golden"
	"github.com/deixis/cmdsnap/internal/runner"
)

// Bin returns the path of the executable built from the main package in
// <repo>/cmd/<name>.
//
// CMDSNAP_BIN_<NAME> overrides the lookup; NAME is upper-cased with every
// other character than A-Z and 0-9 replaced by an underscore. Otherwise the
// package is built once per test binary into <repo>/<bin_dir>/<name>. When
// there is no such package, an existing file at that path is used.
func Bin(t testing.TB, name string) string {
	t.Helper()
	return resolveExecutable(t, target{kind: "bin", name: name, pkg: "cmd"})
}

// Example is like Bin for the main package in <repo>/examples/<name>. The
// override is CMDSNAP_EXAMPLE_<NAME> and the output directory is
// <repo>/<bin_dir>/examples.
func Example(t testing.TB, name string) string {
	t.Helper()
	return resolveExecutable(t, target{kind: "example", name: name, pkg: "examples", sub: "examples"})
}

type target struct {
	kind string // bin or example
	name string
	pkg  string // source directory under the repository root
	sub  string // output directory under bin_dir
}

func (tg target) envVar() string {
	var b strings.Builder
	b.WriteString("CMDSNAP_" + strings.ToUpper(tg.kind) + "_")
	for _, r := range strings.ToUpper(tg.name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

var (
	buildsMu sync.Mutex
	builds   = map[string]func() (string, error){}
)

func resolveExecutable(t testing.TB, tg target) string {
	t.Helper()
	if v := os.Getenv(tg.envVar()); v != "" {
		return v
	}
	e := mustEnv(t)
	logger := golden.TestLogger(t, e.level)

	src := filepath.Join(e.root, tg.pkg, tg.name)
	binDir := e.cfg.BinDir()
	if !filepath.IsAbs(binDir) {
		binDir = filepath.Join(e.root, binDir)
	}
	out := filepath.Join(binDir, tg.sub, tg.name+exeSuffix)

	if isDir(src) {
		buildsMu.Lock()
		build, ok := builds[out]
		if !ok {
			build = sync.OnceValues(func() (string, error) {
				return out, goBuild(context.WithoutCancel(t.Context()), logger, e.root, "./"+tg.pkg+"/"+tg.name, out)
			})
			builds[out] = build
		}
		buildsMu.Unlock()

		path, err := build()
		if err != nil {
			t.Fatalf("cmdsnap: building %s %q: %v", tg.kind, tg.name, err)
		}
		return path
	}
	if isFile(out) {
		return out
	}
	t.Fatalf("cmdsnap: cannot determine path to executable %q", tg.name)
	return ""
}

// goBuild compiles pkg into out with the go tool.
func goBuild(ctx context.Context, logger *log.Logger, root, pkg, out string) error {
	r := &runner.Runner{Logger: logger}
	res, err := r.Run(ctx, runner.Proc{
		Path: "go",
		Args: []string{"build", "-o", out, pkg},
		Dir:  root,
	}, nil)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("go build %s: exit code %d\n%s", pkg, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	logger.Debug("built", "package", pkg, "output", out)
	return nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
