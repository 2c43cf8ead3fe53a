package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{}
}

func sh(script string) Proc {
	return Proc{Path: "sh", Args: []string{"-c", script}}
}

func TestRun_Success(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), Proc{Path: "echo", Args: []string{"hello"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Error("Success = false, want true")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if string(res.Stdout) != "hello\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello\n")
	}
	if len(res.Stderr) != 0 {
		t.Errorf("Stderr = %q, want empty", res.Stderr)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), sh("exit 3"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRun_Stderr(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), sh("echo oops >&2"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stderr) != "oops\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "oops\n")
	}
	if len(res.Stdout) != 0 {
		t.Errorf("Stdout = %q, want empty", res.Stdout)
	}
}

func TestRun_Signal(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), sh("kill -9 $$"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.ExitCode != ExitCodeUnknown {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitCodeUnknown)
	}
	if ExitCodeUnknown != -1 {
		t.Errorf("ExitCodeUnknown = %d, want -1", ExitCodeUnknown)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), Proc{Path: "nonexistent-binary-xyz-123"}, nil)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !errors.Is(err, ErrSpawn) {
		t.Errorf("errors.Is(err, ErrSpawn) = false, err = %v", err)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("errors.Is(err, exec.ErrNotFound) = false, err = %v", err)
	}
	if !strings.Contains(err.Error(), "nonexistent-binary-xyz-123") {
		t.Errorf("error = %q, want to mention the binary name", err)
	}
	var runErr *Error
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if runErr.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestRun_EmptyPath(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), Proc{}, nil)
	if err == nil {
		t.Fatal("expected error for empty path")
	}
	var runErr *Error
	if !errors.As(err, &runErr) {
		t.Fatalf("err = %T, want *Error", err)
	}
	if !errors.Is(err, ErrSpawn) {
		t.Errorf("errors.Is(err, ErrSpawn) = false, err = %v", err)
	}
}

func TestRun_Stdin(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), Proc{Path: "cat"}, []byte("Hello World!"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "Hello World!" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "Hello World!")
	}
}

func TestRun_EmptyStdin(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), Proc{Path: "cat"}, []byte{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Stdout) != 0 {
		t.Errorf("Stdout = %q, want empty", res.Stdout)
	}
}

func TestRun_NoStdinReadsEOF(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), Proc{Path: "cat"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Stdout) != 0 {
		t.Errorf("Stdout = %q, want empty", res.Stdout)
	}
}

// A payload far larger than a pipe buffer must not deadlock while the child
// is writing it straight back to stdout.
func TestRun_LargeStdin(t *testing.T) {
	r := newTestRunner(t)
	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<16) // 1 MiB
	res, err := r.Run(context.Background(), Proc{Path: "cat"}, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(res.Stdout, payload) {
		t.Errorf("len(Stdout) = %d, want %d", len(res.Stdout), len(payload))
	}
}

func TestRun_StdinWriteFailure(t *testing.T) {
	r := newTestRunner(t)
	payload := bytes.Repeat([]byte("x"), 1<<20)
	_, err := r.Run(context.Background(), sh("exec 0<&-; sleep 1"), payload)
	if err == nil {
		t.Fatal("expected error when the child closes stdin early")
	}
	if !errors.Is(err, ErrStdinWrite) {
		t.Errorf("errors.Is(err, ErrStdinWrite) = false, err = %v", err)
	}
}

// A child that exits without reading its payload fails the same way on every
// run, however the exit races the write.
func TestRun_UnreadStdin(t *testing.T) {
	r := newTestRunner(t)
	for i := range 50 {
		_, err := r.Run(context.Background(), Proc{Path: "true"}, []byte("hi"))
		if !errors.Is(err, ErrStdinWrite) {
			t.Fatalf("run %d: err = %v, want ErrStdinWrite", i, err)
		}
		if !strings.Contains(err.Error(), "2 of 2 stdin bytes unread") {
			t.Fatalf("run %d: err = %v", i, err)
		}
	}
}

func TestRun_PartiallyReadStdin(t *testing.T) {
	r := newTestRunner(t)
	// The shell read builtin consumes a pipe one byte at a time.
	_, err := r.Run(context.Background(), sh("read line"), []byte("first\nsecond\n"))
	if !errors.Is(err, ErrStdinWrite) {
		t.Fatalf("err = %v, want ErrStdinWrite", err)
	}
	if !strings.Contains(err.Error(), "7 of 13 stdin bytes unread") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_Env(t *testing.T) {
	r := newTestRunner(t)
	p := sh(`printf '%s' "$CMDSNAP_RUNNER_TEST"`)
	p.Env = []EnvVar{{Key: "CMDSNAP_RUNNER_TEST", Value: "from-override"}}
	res, err := r.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "from-override" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "from-override")
	}
}

func TestRun_EnvUnset(t *testing.T) {
	t.Setenv("CMDSNAP_RUNNER_TEST", "inherited")
	r := newTestRunner(t)
	p := sh(`printf '%s' "${CMDSNAP_RUNNER_TEST-unset}"`)
	p.Env = []EnvVar{{Key: "CMDSNAP_RUNNER_TEST", Unset: true}}
	res, err := r.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "unset" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "unset")
	}
}

func TestRun_ClearEnv(t *testing.T) {
	envPath, err := exec.LookPath("env")
	if err != nil {
		t.Skip("env not found in PATH")
	}
	r := newTestRunner(t)
	p := Proc{
		Path:     envPath,
		ClearEnv: true,
		Env:      []EnvVar{{Key: "ONLY", Value: "1"}},
	}
	res, err := r.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "ONLY=1\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "ONLY=1\n")
	}
}

func TestRun_Dir(t *testing.T) {
	r := newTestRunner(t)
	dir := filepath.Join(t.TempDir(), "workdir")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), Proc{Path: "pwd", Dir: dir}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(res.Stdout), "workdir") {
		t.Errorf("Stdout = %q, want to contain 'workdir'", res.Stdout)
	}
}

func TestRun_RunIDUnique(t *testing.T) {
	r := newTestRunner(t)
	a, err := r.Run(context.Background(), Proc{Path: "true"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := r.Run(context.Background(), Proc{Path: "true"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RunID == b.RunID {
		t.Errorf("RunID reused: %s", a.RunID)
	}
}

func TestRun_DebugLog(t *testing.T) {
	var buf bytes.Buffer
	r := &Runner{Logger: log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})}
	res, err := r.Run(context.Background(), Proc{Path: "echo", Args: []string{"x"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"spawning", "exited", res.RunID} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides []EnvVar
		want      []string
	}{
		{
			name: "empty",
			want: []string{},
		},
		{
			name:      "replace keeps position",
			base:      []string{"A=1", "B=2"},
			overrides: []EnvVar{{Key: "A", Value: "x"}},
			want:      []string{"A=x", "B=2"},
		},
		{
			name:      "append in override order",
			base:      []string{"A=1"},
			overrides: []EnvVar{{Key: "Z", Value: "9"}, {Key: "C", Value: "3"}},
			want:      []string{"A=1", "Z=9", "C=3"},
		},
		{
			name:      "unset",
			base:      []string{"A=1", "B=2"},
			overrides: []EnvVar{{Key: "A", Unset: true}},
			want:      []string{"B=2"},
		},
		{
			name:      "unset then set",
			base:      []string{"A=1", "B=2"},
			overrides: []EnvVar{{Key: "A", Unset: true}, {Key: "A", Value: "again"}},
			want:      []string{"A=again", "B=2"},
		},
		{
			name: "value containing equals",
			base: []string{"A=x=y"},
			want: []string{"A=x=y"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeEnv(tt.base, tt.overrides)
			if got == nil {
				t.Fatal("MergeEnv returned nil")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("MergeEnv = %v, want %v", got, tt.want)
			}
		})
	}
}
