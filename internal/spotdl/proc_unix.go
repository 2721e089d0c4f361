//go:build !windows

package spotdl

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// prepareCommand puts spotdl in its own process group so a cancel also
// stops the ffmpeg children it spawns.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
}
