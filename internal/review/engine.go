// Package review finds pending snapshots and accepts or rejects them. It is
// consumed by both the MCP server and the CLI commands.
package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/deixis/cmdsnap/internal/config"
	"github.com/deixis/cmdsnap/internal/golden"
	"github.com/deixis/cmdsnap/internal/runner"
	"github.com/deixis/cmdsnap/internal/snapshot"
)

// CommandRunner executes a process. Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, p runner.Proc, stdin []byte) (*runner.Result, error)
}

// Engine holds shared dependencies for all review operations.
type Engine struct {
	Config    *config.Config
	Runner    CommandRunner
	Store     snapshot.Store
	Logger    *log.Logger // optional
	Workspace string      // cwd; go test runs here and ./... scopes to here
	RepoRoot  string      // module root; pending snapshots are searched below it
}

// Pending is a snapshot awaiting review.
type Pending struct {
	Path   string             // pending file, relative to the repository root
	Target string             // baseline it would replace, relative to the repository root
	Old    *snapshot.Snapshot // nil when there is no baseline yet
	New    *snapshot.Snapshot
}

// IsNew reports whether the pending snapshot has no baseline.
func (p *Pending) IsNew() bool { return p.Old == nil }

// Pending lists every pending snapshot below the repository root, sorted by
// path. Version control, vendor, hidden and underscore-prefixed directories
// are skipped.
func (e *Engine) Pending() ([]Pending, error) {
	root := e.root()
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := snapshot.TargetPath(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching for pending snapshots: %w", err)
	}
	slices.Sort(paths)

	out := make([]Pending, 0, len(paths))
	for _, p := range paths {
		entry, err := e.load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

func skipDir(name string) bool {
	return name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// Show returns one pending snapshot. path may name the pending file or the
// baseline, either absolute or relative to the repository root.
func (e *Engine) Show(path string) (*Pending, error) {
	abs, err := e.resolve(path)
	if err != nil {
		return nil, err
	}
	return e.load(abs)
}

// Diff returns a unified diff from the baseline to the pending snapshot.
func (e *Engine) Diff(p *Pending) string {
	old := ""
	if p.Old != nil {
		old = p.Old.Body
	}
	return golden.Diff(old, p.New.Body, p.Target, p.Path)
}

// Accept replaces each baseline with its pending snapshot and returns the
// baselines written. With no paths, every pending snapshot is accepted.
func (e *Engine) Accept(paths []string) ([]string, error) {
	return e.each(paths, func(abs, target string) error {
		snap, err := e.Store.Load(abs)
		if err != nil {
			return err
		}
		if err := e.Store.Save(target, snap); err != nil {
			return err
		}
		if err := e.Store.Delete(abs); err != nil {
			return err
		}
		e.logger().Info("accepted", "snapshot", e.rel(target))
		return nil
	})
}

// Reject deletes each pending snapshot and returns the baselines left in
// place. With no paths, every pending snapshot is rejected.
func (e *Engine) Reject(paths []string) ([]string, error) {
	return e.each(paths, func(abs, target string) error {
		if err := e.Store.Delete(abs); err != nil {
			return err
		}
		e.logger().Info("rejected", "snapshot", e.rel(target))
		return nil
	})
}

func (e *Engine) each(paths []string, fn func(abs, target string) error) ([]string, error) {
	var targets []string
	if len(paths) == 0 {
		all, err := e.Pending()
		if err != nil {
			return nil, err
		}
		for _, p := range all {
			paths = append(paths, p.Path)
		}
	}
	for _, p := range paths {
		abs, err := e.resolve(p)
		if err != nil {
			return targets, err
		}
		if _, err := os.Stat(abs); err != nil {
			return targets, fmt.Errorf("no pending snapshot %s", p)
		}
		target, _ := snapshot.TargetPath(abs)
		if err := fn(abs, target); err != nil {
			return targets, err
		}
		targets = append(targets, e.rel(target))
	}
	return targets, nil
}

func (e *Engine) load(abs string) (*Pending, error) {
	target, ok := snapshot.TargetPath(abs)
	if !ok {
		return nil, fmt.Errorf("%s is not a pending snapshot", e.rel(abs))
	}
	snap, err := e.Store.Load(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no pending snapshot %s", e.rel(abs))
		}
		return nil, err
	}
	p := &Pending{Path: e.rel(abs), Target: e.rel(target), New: snap}
	old, err := e.Store.Load(target)
	switch {
	case err == nil:
		p.Old = old
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	return p, nil
}

// resolve maps a user-supplied path onto an absolute pending snapshot path
// inside the repository.
func (e *Engine) resolve(path string) (string, error) {
	root := e.root()
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the repository %s", path, root)
	}
	if strings.HasSuffix(abs, snapshot.Extension) {
		abs = snapshot.PendingPath(abs)
	}
	if _, ok := snapshot.TargetPath(abs); !ok {
		return "", fmt.Errorf("%s is not a snapshot file", path)
	}
	return abs, nil
}

func (e *Engine) root() string {
	if e.RepoRoot != "" {
		return e.RepoRoot
	}
	return e.Workspace
}

func (e *Engine) rel(abs string) string {
	if rel, err := filepath.Rel(e.root(), abs); err == nil {
		return rel
	}
	return abs
}

var discard = log.New(io.Discard)

func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return discard
}

// ResolvePackages normalises package arguments for go test. It accepts Go
// import paths and relative patterns unchanged, and converts absolute
// directories to ./… patterns relative to the repository root. An empty
// list means ./...
func (e *Engine) ResolvePackages(packages []string) []string {
	if len(packages) == 0 {
		return []string{"./..."}
	}

	resolved := make([]string, 0, len(packages))
	for _, p := range packages {
		if !filepath.IsAbs(p) {
			resolved = append(resolved, p)
			continue
		}
		rel, err := filepath.Rel(e.root(), p)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		pattern := "./" + filepath.ToSlash(rel)
		if !strings.HasSuffix(pattern, "...") {
			pattern += "/..."
		}
		resolved = append(resolved, pattern)
	}

	if len(resolved) == 0 {
		return []string{"./..."}
	}
	return resolved
}
