//go:build windows

package scriptrun

import "os/exec"

// setProcessGroup is a no-op on Windows. Job Objects would give full process
// tree management; deferred.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the process directly on Windows.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
