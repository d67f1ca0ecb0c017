package runner

import (
	"os"
	"os/exec"
)

// runShellCommand is the default command runner: it runs cmd through
// the user's shell, connecting stdout/stderr so task output is visible
// the way a local build tool's output normally is.
func runShellCommand(cmd string) error {
	c := exec.Command("sh", "-c", cmd)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Stdin = os.Stdin
	return c.Run()
}
