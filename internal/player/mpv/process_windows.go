//go:build windows

package mpv

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes detaches mpv from the console so its Ctrl+C
// handling never reaches the interface.
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
