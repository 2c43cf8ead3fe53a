// Package golden compares rendered text against snapshot files and manages
// the update workflow when they differ.
package golden

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/deixis/cmdsnap/internal/config"
	"github.com/deixis/cmdsnap/internal/snapshot"
)

// Engine records and checks snapshots for tests.
type Engine struct {
	Dir    string            // snapshot directory, relative to the test's working directory
	Update config.UpdateMode // resolved mode; auto is treated as new
	Store  snapshot.Store
	Level  log.Level // threshold for messages logged through the test

	mu       sync.Mutex
	counters map[string]int
}

// New creates an Engine from a loaded configuration.
func New(cfg *config.Config, level log.Level) *Engine {
	return &Engine{
		Dir:    cfg.SnapshotDir(),
		Update: cfg.Update(),
		Store:  snapshot.NewDiskStore(),
		Level:  level,
	}
}

// Named checks body against the snapshot called name for the running test.
func (e *Engine) Named(t testing.TB, name, body string, meta snapshot.Meta) {
	t.Helper()
	file := SanitizeName(t.Name()) + "__" + SanitizeName(name) + snapshot.Extension
	e.check(t, filepath.Join(e.Dir, file), name, body, meta)
}

// Anonymous checks body against the next positional snapshot of the running
// test: <test>.snap, then <test>-2.snap, and so on.
func (e *Engine) Anonymous(t testing.TB, body string, meta snapshot.Meta) {
	t.Helper()
	n := e.next(t)
	name := SanitizeName(t.Name())
	if n > 1 {
		name = fmt.Sprintf("%s-%d", name, n)
	}
	e.check(t, filepath.Join(e.Dir, name+snapshot.Extension), name, body, meta)
}

// Inline compares body against a literal written in the test source. The
// literal is dedented and a leading newline is dropped before comparison.
func (e *Engine) Inline(t testing.TB, body, expected string) {
	t.Helper()
	actual := snapshot.Normalize(body)
	want := snapshot.Normalize(Dedent(expected))
	if actual == want {
		return
	}
	t.Fatalf("cmdsnap: inline snapshot mismatch\n%s\nNew snapshot:\n%s", Diff(want, actual, "expected", "actual"), actual)
}

func (e *Engine) next(t testing.TB) int {
	key := t.Name()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counters == nil {
		e.counters = make(map[string]int)
	}
	e.counters[key]++
	n := e.counters[key]
	if n == 1 {
		t.Cleanup(func() {
			e.mu.Lock()
			delete(e.counters, key)
			e.mu.Unlock()
		})
	}
	return n
}

func (e *Engine) check(t testing.TB, path, name, body string, meta snapshot.Meta) {
	t.Helper()
	if meta.Source == "" {
		meta.Source = t.Name()
	}
	actual := snapshot.Normalize(body)
	pending := snapshot.PendingPath(path)
	logger := TestLogger(t, e.Level).With("snapshot", path)

	old, err := e.Store.Load(path)
	missing := errors.Is(err, fs.ErrNotExist)
	if err != nil && !missing {
		t.Fatalf("cmdsnap: %v", err)
		return
	}
	if !missing && old.Body == actual {
		if e.Update != config.UpdateNo {
			if err := e.Store.Delete(pending); err != nil {
				logger.Warn("removing stale pending snapshot", "err", err)
			}
		}
		return
	}

	snap := &snapshot.Snapshot{Meta: meta, Body: actual}
	switch e.Update {
	case config.UpdateAlways:
		if err := e.Store.Save(path, snap); err != nil {
			t.Fatalf("cmdsnap: %v", err)
			return
		}
		if err := e.Store.Delete(pending); err != nil {
			logger.Warn("removing stale pending snapshot", "err", err)
		}
		logger.Info("snapshot written")
		return
	case config.UpdateNo:
		t.Fatalf("%s", failure(name, path, old, actual, ""))
	default:
		if err := e.Store.Save(pending, snap); err != nil {
			t.Fatalf("cmdsnap: %v", err)
			return
		}
		logger.Debug("pending snapshot written", "pending", pending)
		t.Fatalf("%s", failure(name, path, old, actual, pending))
	}
}

func failure(name, path string, old *snapshot.Snapshot, actual, pending string) string {
	var b strings.Builder
	if old == nil {
		fmt.Fprintf(&b, "cmdsnap: snapshot %q not found: %s\n", name, path)
		fmt.Fprintf(&b, "\nNew snapshot:\n%s\n", actual)
	} else {
		fmt.Fprintf(&b, "cmdsnap: snapshot %q does not match: %s\n", name, path)
		b.WriteString(Diff(old.Body, actual, "old", "new"))
	}
	if pending != "" {
		fmt.Fprintf(&b, "\nWrote %s. Review with `cmdsnap pending` and `cmdsnap accept`.", pending)
	} else {
		fmt.Fprintf(&b, "\nRun with %s=always to update.", config.EnvUpdate)
	}
	return b.String()
}

// TestLogger returns a logger that writes through t.Log.
func TestLogger(t testing.TB, level log.Level) *log.Logger {
	return log.NewWithOptions(tbWriter{t}, log.Options{Level: level, Prefix: "cmdsnap"})
}

type tbWriter struct{ t testing.TB }

func (w tbWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
