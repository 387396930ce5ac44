//go:build windows

package shell

import (
	"os"
	"os/exec"
)

func setProcessGroup(c *exec.Cmd) {}

func terminateGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func killGroup(p *os.Process) error {
	return terminateGroup(p)
}
