// Package execrun wraps external command invocation behind a small interface
// so the scan pipeline can be exercised in tests without a scanner attached.
package execrun

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Runner executes external commands with a bounded timeout.
type Runner interface {
	// Run executes name with args, waiting at most timeout. It returns
	// captured stdout and stderr; err is non-nil on non-zero exit, missing
	// binary, or timeout.
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (stdout, stderr string, err error)
	// LookPath reports the absolute path of name, or an error if it is not
	// installed.
	LookPath(name string) (string, error)
}

// OS runs commands on the host via os/exec.
type OS struct{}

func (OS) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	err := cmd.Run()
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("%s timed out after %s: %w", name, timeout, context.DeadlineExceeded)
	}
	return out.String(), errOut.String(), err
}

func (OS) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
