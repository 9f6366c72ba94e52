// Package procrunner executes external programs for the harness: the
// transformer under test, the CMake build, and the two validators.
package procrunner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ExecutionError reports a subprocess that exited non-zero, carrying the
// combined output so the caller can surface it to the user.
type ExecutionError struct {
	Argv   []string
	Output string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command failed: %s: %v", strings.Join(e.Argv, " "), e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// EchoFunc receives each argv just before it is executed. A nil EchoFunc
// disables echoing.
type EchoFunc func(argv []string)

// Runner runs external processes. The zero value is usable and silent.
type Runner struct {
	Echo EchoFunc
}

// New returns a Runner that echoes command lines through echo.
func New(echo EchoFunc) *Runner {
	return &Runner{Echo: echo}
}

// Capture runs argv in dir (or the current directory when dir is empty) and
// returns its combined stdout+stderr. A non-zero exit yields an
// *ExecutionError wrapping the process error and the captured output.
//
// ctx is threaded through to exec for future cancellation; no timeout is
// applied today, so a hung subprocess hangs the harness.
func (r *Runner) Capture(ctx context.Context, dir string, argv ...string) (string, error) {
	cmd := r.command(ctx, dir, argv)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &ExecutionError{Argv: argv, Output: string(out), Err: err}
	}
	return string(out), nil
}

// Stream runs argv in dir with stdout and stderr wired straight through to
// the harness's own streams.
func (r *Runner) Stream(ctx context.Context, dir string, argv ...string) error {
	cmd := r.command(ctx, dir, argv)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &ExecutionError{Argv: argv, Err: err}
	}
	return nil
}

func (r *Runner) command(ctx context.Context, dir string, argv []string) *exec.Cmd {
	if r.Echo != nil {
		r.Echo(argv)
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return cmd
}
