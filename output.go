package cmdsnap

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/deixis/cmdsnap/internal/runner"
)

// ExitCodeUnknown is reported when the process ended without an exit code,
// for example because it was killed by a signal.
const ExitCodeUnknown = runner.ExitCodeUnknown

// Output is the captured result of a finished process.
type Output struct {
	Success  bool
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func newOutput(r *runner.Result) *Output {
	return &Output{
		Success:  r.Success,
		ExitCode: r.ExitCode,
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
	}
}

// Render formats o as snapshot text:
//
//	success: true
//	exit_code: 0
//	----- stdout -----
//	42
//
//	----- stderr -----
//
// Stdout and stderr are decoded as UTF-8; invalid sequences become U+FFFD.
func Render(o *Output) string {
	return fmt.Sprintf("success: %t\nexit_code: %d\n----- stdout -----\n%s\n----- stderr -----\n%s",
		o.Success, o.ExitCode, lossy(o.Stdout), lossy(o.Stderr))
}

// lossy decodes b as UTF-8. A Decoder is stateful, so each call gets its own.
func lossy(b []byte) string {
	s, err := unicode.UTF8.NewDecoder().String(string(b))
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return s
}
