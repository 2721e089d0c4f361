//go:build windows

package spotdl

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// prepareCommand keeps spotdl from flashing a console window when the GUI
// build starts it.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW | syscall.CREATE_NEW_PROCESS_GROUP,
	}
	cmd.WaitDelay = 5 * time.Second
}
