package cloner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitRunner executes one git invocation. Injected so tests can observe the
// exact argument vector without spawning subprocesses.
type GitRunner interface {
	Run(ctx context.Context, args []string) error
}

// ExecRunner shells out to the git binary on PATH.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Run executes git with args. On failure the error carries trimmed stderr,
// which is far more useful than git's exit status alone.
func (r *ExecRunner) Run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("git %s: %w", args[0], err)
		}
		return fmt.Errorf("git %s: %s", args[0], msg)
	}
	return nil
}
