package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// StartDetached spawns the monitor daemon as a detached process by
// self-exec'ing with the hidden monitor command. The child survives the
// parent CLI process exiting.
func StartDetached(configPath string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"monitor"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(executable, args...)

	// New session, no controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	return cmd.Start()
}
