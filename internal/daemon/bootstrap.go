package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// Spawn starts a detached daemon process via self-exec of the hidden
// "daemon" command. The child survives the launching terminal.
func Spawn(configPath string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"daemon"}
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
