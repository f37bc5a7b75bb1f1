package vpn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yllada/teleport-manager/common"
)

// CommandOutput is what an external tool printed and how it exited.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Diagnostic returns the tool's error text, falling back to stdout for
// tools that report failures there.
func (o CommandOutput) Diagnostic() string {
	if s := strings.TrimSpace(o.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(o.Stdout)
}

// CommandRunner runs an external tool to completion.
// A non-zero exit is returned as an error together with the output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandOutput, error)
}

// ExecRunner runs tools with os/exec, bounding each run by Timeout.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates a runner with the given per-invocation timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = common.ToolTimeout
	}
	return &ExecRunner{Timeout: timeout}
}

// Run executes name with args and captures its output.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding the pipes open must not outlive the timeout.
	cmd.WaitDelay = time.Second
	hideWindow(cmd)

	log.Debug().Str("tool", name).Strs("args", args).Msg("running tool")

	err := cmd.Run()
	out := CommandOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("%s timed out after %v: %w", name, r.Timeout, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			out.ExitCode = -1
		}
		return out, err
	}
	return out, nil
}

// expandArgs substitutes {placeholders} in an argument template.
func expandArgs(template []string, values map[string]string) []string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	args := make([]string, len(template))
	for i, arg := range template {
		args[i] = r.Replace(arg)
	}
	return args
}
