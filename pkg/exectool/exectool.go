// Package exectool provides the shared error sentinel and a small
// run-with-timeout helper for the external CLI tools this project shells
// out to (xrandr, cvt, xsel, xfconf-query, xdotool). Failures here are
// logged and reported to the caller; they never bring down the owning
// session.
package exectool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrExternalTool wraps any failure (non-zero exit, timeout, exec error)
// from one of the external CLI collaborators. Always non-fatal: the
// operation reports failure and the session continues.
var ErrExternalTool = errors.New("external tool failed")

// DefaultTimeout is the bound every external-tool invocation in this
// project uses, per spec.md's "3s bounded where applicable".
const DefaultTimeout = 3 * time.Second

// Run executes name with args under a bounded timeout, returning combined
// stdout. A non-zero exit or timeout is reported as ErrExternalTool.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s %v: %v", ErrExternalTool, name, args, err)
	}
	return out, nil
}

// RunStdin is like Run but feeds input on the subprocess's stdin, used by
// clipboard writes.
func RunStdin(ctx context.Context, timeout time.Duration, input string, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(input)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s %v: %v", ErrExternalTool, name, args, err)
	}
	return nil
}
