//go:build windows

package vpn

import (
	"os/exec"
	"syscall"
)

// hideWindow keeps console tools from flashing a window.
func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
