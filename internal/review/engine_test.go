package review

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/deixis/cmdsnap/internal/config"
	"github.com/deixis/cmdsnap/internal/runner"
	"github.com/deixis/cmdsnap/internal/snapshot"
)

func TestResolvePackages(t *testing.T) {
	tests := []struct {
		name      string
		workspace string
		in        []string
		want      []string
	}{
		{"empty", "/project", nil, []string{"./..."}},
		{"relative pattern", "/project", []string{"./pkg/foo/..."}, []string{"./pkg/foo/..."}},
		{"import path", "/project", []string{"example.com/foo/..."}, []string{"example.com/foo/..."}},
		{"absolute inside root", "/project/pkg/foo", []string{"/project/pkg/bar"}, []string{"./pkg/bar/..."}},
		{"absolute outside root", "/project", []string{"/other/project"}, []string{"./..."}},
		{"absolute at root", "/project", []string{"/project"}, []string{"././..."}},
		{
			"mixed", "/project/cmd",
			[]string{"./...", "example.com/foo", "/project/pkg/bar", "/outside"},
			[]string{"./...", "example.com/foo", "./pkg/bar/..."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Engine{Workspace: tt.workspace, RepoRoot: "/project"}
			if got := e.ResolvePackages(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolvePackages(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// newRepo creates a module root with one replaced and one new pending snapshot.
func newRepo(t *testing.T) *Engine {
	t.Helper()
	root := t.TempDir()
	write(t, root, "go.mod", "module example.com/demo\n")
	write(t, root, "testdata/snapshots/TestA__help.snap", "---\nsource: a_test.go\n---\nold\n")
	write(t, root, "testdata/snapshots/TestA__help.snap.new", "---\nsource: a_test.go\n---\nnew\n")
	write(t, root, "pkg/testdata/snapshots/TestB.snap.new", "fresh\n")
	write(t, root, "_scratch/TestC.snap.new", "ignored\n")
	write(t, root, ".git/TestD.snap.new", "ignored\n")
	return &Engine{
		Config:    &config.Config{},
		Store:     snapshot.NewDiskStore(),
		Workspace: root,
		RepoRoot:  root,
	}
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(t *testing.T, e *Engine, rel string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(e.RepoRoot, filepath.FromSlash(rel)))
	return err == nil
}

func TestPending(t *testing.T) {
	e := newRepo(t)
	got, err := e.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Pending = %d entries, want 2: %+v", len(got), got)
	}

	b, a := got[0], got[1] // pkg/ sorts before testdata/
	if b.Target != filepath.FromSlash("pkg/testdata/snapshots/TestB.snap") || !b.IsNew() {
		t.Errorf("got[0] = %+v, want new TestB", b)
	}
	if b.New.Body != "fresh" {
		t.Errorf("got[0].New.Body = %q", b.New.Body)
	}
	if a.IsNew() || a.Old.Body != "old" || a.New.Body != "new" {
		t.Errorf("got[1] = old %+v new %+v", a.Old, a.New)
	}
	if a.New.Meta.Source != "a_test.go" {
		t.Errorf("got[1].New.Meta.Source = %q", a.New.Meta.Source)
	}
}

func TestShowAndDiff(t *testing.T) {
	e := newRepo(t)
	for _, path := range []string{
		"testdata/snapshots/TestA__help.snap",
		"testdata/snapshots/TestA__help.snap.new",
		filepath.Join(e.RepoRoot, "testdata/snapshots/TestA__help.snap.new"),
	} {
		p, err := e.Show(path)
		if err != nil {
			t.Fatalf("Show(%q): %v", path, err)
		}
		diff := e.Diff(p)
		if !strings.Contains(diff, "-old") || !strings.Contains(diff, "+new") {
			t.Errorf("Diff = %q", diff)
		}
	}
}

func TestShow_Errors(t *testing.T) {
	e := newRepo(t)
	tests := []struct {
		path, want string
	}{
		{"../elsewhere.snap", "outside the repository"},
		{"go.mod", "not a snapshot file"},
		{"testdata/snapshots/TestZ.snap", "no pending snapshot"},
	}
	for _, tt := range tests {
		if _, err := e.Show(tt.path); err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Show(%q) error = %v, want %q", tt.path, err, tt.want)
		}
	}
}

func TestAccept(t *testing.T) {
	e := newRepo(t)
	got, err := e.Accept([]string{"testdata/snapshots/TestA__help.snap"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{filepath.FromSlash("testdata/snapshots/TestA__help.snap")}; !reflect.DeepEqual(got, want) {
		t.Errorf("Accept = %v, want %v", got, want)
	}
	if exists(t, e, "testdata/snapshots/TestA__help.snap.new") {
		t.Error("pending file still present")
	}
	snap, err := e.Store.Load(filepath.Join(e.RepoRoot, "testdata/snapshots/TestA__help.snap"))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Body != "new" {
		t.Errorf("baseline body = %q, want new", snap.Body)
	}
	if !exists(t, e, "pkg/testdata/snapshots/TestB.snap.new") {
		t.Error("unrelated pending file was touched")
	}

	if _, err := e.Accept([]string{"testdata/snapshots/TestA__help.snap"}); err == nil {
		t.Error("accepting twice should fail")
	}
}

func TestAccept_CachedStoreSeesRewrite(t *testing.T) {
	e := newRepo(t)
	disk := snapshot.NewDiskStore()
	e.Store = snapshot.NewLRUStore(8, disk)
	pending := filepath.Join(e.RepoRoot, "testdata/snapshots/TestA__help.snap.new")

	if err := disk.Save(pending, &snapshot.Snapshot{Body: "first run"}); err != nil {
		t.Fatal(err)
	}
	p, err := e.Show("testdata/snapshots/TestA__help.snap")
	if err != nil {
		t.Fatal(err)
	}
	if p.New.Body != "first run" {
		t.Fatalf("pending body = %q, want first run", p.New.Body)
	}

	// A go test run rewrites the pending file between review calls.
	if err := disk.Save(pending, &snapshot.Snapshot{Body: "second run"}); err != nil {
		t.Fatal(err)
	}
	p, err = e.Show("testdata/snapshots/TestA__help.snap")
	if err != nil {
		t.Fatal(err)
	}
	if p.New.Body != "second run" {
		t.Errorf("pending body = %q, want second run", p.New.Body)
	}
	if _, err := e.Accept(nil); err != nil {
		t.Fatal(err)
	}
	snap, err := disk.Load(filepath.Join(e.RepoRoot, "testdata/snapshots/TestA__help.snap"))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Body != "second run" {
		t.Errorf("baseline body = %q, want second run", snap.Body)
	}
}

func TestAccept_All(t *testing.T) {
	e := newRepo(t)
	got, err := e.Accept(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("Accept(nil) = %v, want 2 targets", got)
	}
	if !exists(t, e, "pkg/testdata/snapshots/TestB.snap") {
		t.Error("new baseline not written")
	}
	if left, _ := e.Pending(); len(left) != 0 {
		t.Errorf("Pending after accept = %+v", left)
	}
}

func TestReject(t *testing.T) {
	e := newRepo(t)
	if _, err := e.Reject(nil); err != nil {
		t.Fatal(err)
	}
	if left, _ := e.Pending(); len(left) != 0 {
		t.Errorf("Pending after reject = %+v", left)
	}
	snap, err := e.Store.Load(filepath.Join(e.RepoRoot, "testdata/snapshots/TestA__help.snap"))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Body != "old" {
		t.Errorf("baseline body = %q, want old", snap.Body)
	}
	if exists(t, e, "pkg/testdata/snapshots/TestB.snap") {
		t.Error("rejecting a new snapshot must not create a baseline")
	}
}

// fakeRunner records the invocation and leaves a pending snapshot behind, the
// way a failing go test run would.
type fakeRunner struct {
	procs  []runner.Proc
	pend   string
	stdout string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, p runner.Proc, _ []byte) (*runner.Result, error) {
	f.procs = append(f.procs, p)
	if f.err != nil {
		return nil, f.err
	}
	if f.pend != "" {
		if err := os.WriteFile(f.pend, []byte("pending\n"), 0o644); err != nil {
			return nil, err
		}
	}
	return &runner.Result{Stdout: []byte(f.stdout), ExitCode: 1}, nil
}

func TestTest(t *testing.T) {
	e := newRepo(t)
	e.Config.Test.Args = []string{"-count=1"}
	fr := &fakeRunner{
		pend: filepath.Join(e.RepoRoot, "testdata/snapshots/TestE.snap.new"),
		stdout: lines(
			`{"Action":"output","Package":"demo","Test":"TestE","Output":"cmdsnap: snapshot \"TestE\" not found\n"}`,
			`{"Action":"fail","Package":"demo","Test":"TestE"}`,
		),
	}
	e.Runner = fr

	report, err := e.Test(t.Context(), []string{"./pkg/..."}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(fr.procs) != 1 {
		t.Fatalf("runner called %d times", len(fr.procs))
	}
	p := fr.procs[0]
	if want := []string{"test", "-json", "./pkg/...", "-count=1"}; p.Path != "go" || !reflect.DeepEqual(p.Args, want) {
		t.Errorf("proc = %s %v, want go %v", p.Path, p.Args, want)
	}
	if !slices.Contains(p.Env, runner.EnvVar{Key: config.EnvUpdate, Value: "new"}) {
		t.Errorf("proc env = %+v, want %s=new", p.Env, config.EnvUpdate)
	}
	if p.Dir != e.Workspace {
		t.Errorf("proc dir = %q", p.Dir)
	}

	if report.Summary.Status != "FAIL" || report.Summary.Mismatches() != 1 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if len(report.Pending) != 3 {
		t.Errorf("Pending = %d, want 3", len(report.Pending))
	}
	if report.Accepted != nil {
		t.Errorf("Accepted = %v, want none", report.Accepted)
	}
}

func TestTest_Accept(t *testing.T) {
	e := newRepo(t)
	e.Runner = &fakeRunner{stdout: `{"Action":"pass","Package":"demo","Test":"TestA"}`}

	report, err := e.Test(t.Context(), nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Accepted) != 2 || len(report.Pending) != 0 {
		t.Errorf("Accepted = %v, Pending = %+v", report.Accepted, report.Pending)
	}
}

func TestTest_RunnerError(t *testing.T) {
	e := newRepo(t)
	boom := errors.New("boom")
	e.Runner = &fakeRunner{err: boom}
	if _, err := e.Test(t.Context(), nil, false); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}
