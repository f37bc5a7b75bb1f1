package vpn

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CapturesOutputAndExitCode(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(5 * time.Second)

	out, err := r.Run(context.Background(), "sh", "-c", "echo hello; echo broken >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.Equal(t, "broken", out.Diagnostic())

	var exitErr *exec.ExitError
	assert.ErrorAs(t, err, &exitErr)
}

func TestExecRunner_Success(t *testing.T) {
	requireShell(t)
	out, err := NewExecRunner(5*time.Second).Run(context.Background(), "sh", "-c", "echo ok")
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "ok", out.Diagnostic())
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(50 * time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "sh", "-c", "sleep 5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecRunner_MissingTool(t *testing.T) {
	out, err := NewExecRunner(time.Second).Run(context.Background(), "teleport-no-such-tool")
	require.Error(t, err)
	assert.Equal(t, -1, out.ExitCode)
}
