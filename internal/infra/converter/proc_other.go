//go:build !unix

package converter

import "os/exec"

func killProcessGroup(cmd *exec.Cmd) {}
