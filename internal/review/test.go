package review

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/deixis/cmdsnap/internal/config"
	"github.com/deixis/cmdsnap/internal/runner"
)

// TestReport is the outcome of a Test run.
type TestReport struct {
	Summary  *TestSummary
	Pending  []Pending // snapshots awaiting review after the run
	Accepted []string  // baselines written when accepting
}

// TestSummary holds parsed go test results.
type TestSummary struct {
	Status      string // PASS or FAIL
	Total       int
	Passed      int
	Failed      int
	Skipped     int
	BuildErrors []BuildError
	Errors      []TestFailure
}

// Mismatches counts failed tests whose output reports a snapshot mismatch.
func (s *TestSummary) Mismatches() int {
	n := 0
	for _, f := range s.Errors {
		if f.Snapshot {
			n++
		}
	}
	return n
}

// BuildError holds a build failure from go test -json.
type BuildError struct {
	ImportPath string
	Output     string
}

// TestFailure holds a single test failure from go test -json.
type TestFailure struct {
	Test     string
	Package  string
	Output   string
	Snapshot bool // the failure came from a snapshot assertion
}

// maxFailureLines is the maximum number of output lines shown per test failure.
const maxFailureLines = 20

func (s *TestSummary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s\n\n", s.Status)

	if s.Status == "PASS" {
		fmt.Fprintf(&b, "All %d tests passed", s.Total)
		if s.Skipped > 0 {
			fmt.Fprintf(&b, " (%d skipped)", s.Skipped)
		}
		fmt.Fprintln(&b, ".")
		return b.String()
	}

	if len(s.BuildErrors) > 0 {
		fmt.Fprintln(&b, "Build errors:")
		for _, be := range s.BuildErrors {
			fmt.Fprintf(&b, "  %s:\n", be.ImportPath)
			writeIndented(&b, truncateLines(be.Output, maxFailureLines), "    ")
		}
		fmt.Fprintln(&b)
	}

	if s.Failed > 0 || len(s.BuildErrors) == 0 {
		fmt.Fprintf(&b, "Failed %d of %d tests", s.Failed, s.Total)
		if m := s.Mismatches(); m > 0 {
			fmt.Fprintf(&b, " (%d snapshot mismatches)", m)
		}
		fmt.Fprint(&b, ".\n\n")
	}
	for _, f := range s.Errors {
		if f.Snapshot {
			fmt.Fprintf(&b, "SNAPSHOT %s %s\n", f.Package, f.Test)
			continue
		}
		fmt.Fprintf(&b, "FAIL %s %s\n", f.Package, f.Test)
		writeIndented(&b, truncateLines(f.Output, maxFailureLines), "    ")
	}
	return b.String()
}

func writeIndented(b *strings.Builder, text, indent string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(b, "%s%s\n", indent, line)
	}
}

// Test runs go test with snapshot updates set to write pending files, then
// lists what is pending. When accept is set, every pending snapshot is
// accepted afterwards.
func (e *Engine) Test(ctx context.Context, packages []string, accept bool) (*TestReport, error) {
	args := []string{"test", "-json"}
	args = append(args, e.ResolvePackages(packages)...)
	if e.Config != nil {
		args = append(args, e.Config.Test.Args...)
	}

	e.logger().Debug("running go test", "args", args)
	res, err := e.Runner.Run(ctx, runner.Proc{
		Path: "go",
		Args: args,
		Env:  []runner.EnvVar{{Key: config.EnvUpdate, Value: string(config.UpdateNew)}},
		Dir:  e.Workspace,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("executing go test: %w", err)
	}

	report := &TestReport{Summary: parseTestOutput(res.Stdout)}
	if accept {
		if report.Accepted, err = e.Accept(nil); err != nil {
			return report, err
		}
	}
	if report.Pending, err = e.Pending(); err != nil {
		return report, err
	}
	return report, nil
}

// test2jsonEvent represents a single event from `go test -json`.
type test2jsonEvent struct {
	Action     string `json:"Action"`
	Package    string `json:"Package"`
	Test       string `json:"Test"`
	Output     string `json:"Output"`
	ImportPath string `json:"ImportPath"`
}

// snapshotMarker prefixes every snapshot assertion failure message.
const snapshotMarker = "cmdsnap: snapshot"

func parseTestOutput(data []byte) *TestSummary {
	s := &TestSummary{Status: "PASS"}

	type testKey struct{ pkg, test string }
	outputs := make(map[testKey]*strings.Builder)
	var failed []testKey
	buildOutputs := make(map[string]*strings.Builder)
	var failedBuilds []string

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev test2jsonEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		key := testKey{ev.Package, ev.Test}

		switch ev.Action {
		case "output":
			if ev.Test == "" {
				continue
			}
			if _, ok := outputs[key]; !ok {
				outputs[key] = &strings.Builder{}
			}
			outputs[key].WriteString(ev.Output)
		case "pass":
			if ev.Test != "" {
				s.Total++
				s.Passed++
			}
		case "fail":
			s.Status = "FAIL"
			if ev.Test != "" {
				s.Total++
				s.Failed++
				failed = append(failed, key)
			}
		case "skip":
			if ev.Test != "" {
				s.Total++
				s.Skipped++
			}
		case "build-output", "build-fail":
			ip := ev.ImportPath
			if ip == "" {
				ip = ev.Package
			}
			if ip == "" {
				continue
			}
			if ev.Action == "build-fail" {
				s.Status = "FAIL"
				if !slices.Contains(failedBuilds, ip) {
					failedBuilds = append(failedBuilds, ip)
				}
				continue
			}
			if _, ok := buildOutputs[ip]; !ok {
				buildOutputs[ip] = &strings.Builder{}
			}
			buildOutputs[ip].WriteString(ev.Output)
		}
	}

	for _, key := range failed {
		output := ""
		if b, ok := outputs[key]; ok {
			output = b.String()
		}
		s.Errors = append(s.Errors, TestFailure{
			Test:     key.test,
			Package:  key.pkg,
			Output:   output,
			Snapshot: strings.Contains(output, snapshotMarker),
		})
	}
	for _, ip := range failedBuilds {
		output := ""
		if b, ok := buildOutputs[ip]; ok {
			output = strings.TrimRight(b.String(), "\n")
		}
		s.BuildErrors = append(s.BuildErrors, BuildError{ImportPath: ip, Output: output})
	}
	return s
}

func truncateLines(s string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:maxLines], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-maxLines)
}
