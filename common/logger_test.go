package common

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTunnelState_String(t *testing.T) {
	tests := []struct {
		state    TunnelState
		expected string
	}{
		{StateUnknown, "Unknown"},
		{StateInactive, "Inactive"},
		{StateActivating, "Activating..."},
		{StateActive, "Active"},
		{StateDeactivating, "Deactivating..."},
		{TunnelState(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.in))
		})
	}
}

func TestInitLogger_ConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	require.NoError(t, InitLogger(LogConfig{
		Level:   zerolog.InfoLevel,
		Dir:     dir,
		Console: &console,
	}))
	t.Cleanup(func() { _ = CloseLogger() })

	log.Debug().Msg("filtered message")
	log.Info().Str("tunnel", TunnelName).Msg("tunnel activated")

	assert.Contains(t, console.String(), "tunnel activated")
	assert.NotContains(t, console.String(), "filtered message")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tunnel":"teleport"`)
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestRotatingFile_RotatesOnOpen(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	require.NoError(t, os.WriteFile(logPath, []byte(strings.Repeat("x", 1024*1024)), 0600))

	r, err := OpenRotatingFile(logPath, 512*1024, 2)
	require.NoError(t, err)
	defer r.Close()

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "log file should start empty after rotation")

	matches, _ := filepath.Glob(filepath.Join(dir, "test.log.*"))
	assert.NotEmpty(t, matches, "backup file should be created after rotation")
}

func TestRotatingFile_RotatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	r, err := OpenRotatingFile(logPath, 64, 5)
	require.NoError(t, err)
	defer r.Close()

	line := []byte(strings.Repeat("y", 40) + "\n")
	for i := 0; i < 3; i++ {
		_, err := r.Write(line)
		require.NoError(t, err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "test.log.*"))
	assert.NotEmpty(t, matches)

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(64))
}

func TestOpenRotatingFile_RefusesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.log")
	require.NoError(t, os.WriteFile(target, nil, 0600))
	link := filepath.Join(dir, "link.log")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := OpenRotatingFile(link, 0, 0)
	assert.Error(t, err)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Join(dir, "absent")))
	assert.False(t, FileExists(dir), "directories are not files")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdefgh", ShortID("abcdefghijkl"))
	assert.Equal(t, "abc", ShortID("abc"))
}

func TestWrapError(t *testing.T) {
	wrapped := WrapError(ErrProvider, "additional context")
	require.Error(t, wrapped)
	assert.Contains(t, wrapped.Error(), "additional context")
	assert.ErrorIs(t, wrapped, ErrProvider)

	assert.NoError(t, WrapError(nil, "context"))
}

func TestToolError(t *testing.T) {
	exitErr := &exec.ExitError{}
	err := &ToolError{Op: "install tunnel service", ExitCode: 1, Output: "  bad config\n", Err: exitErr}

	assert.Equal(t, "install tunnel service failed (exit 1): bad config", err.Error())

	var target *exec.ExitError
	assert.True(t, errors.As(err, &target))
}

func TestDeletionError(t *testing.T) {
	err := &DeletionError{
		Remaining: []string{"/data/teleport_token_0"},
		Errs:      []error{os.ErrPermission},
	}

	assert.ErrorIs(t, err, ErrPartialArtifactDeletion)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "teleport_token_0")
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "artifact")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0600))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	leftovers, _ := filepath.Glob(filepath.Join(dir, "sub", ".artifact.tmp-*"))
	assert.Empty(t, leftovers)
}
