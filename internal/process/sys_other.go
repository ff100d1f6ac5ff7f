//go:build !unix

package process

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

func setProcessGroup(*exec.Cmd) {}

func killGroup(p *os.Process) error {
	return p.Kill()
}

func lookupSignal(name string) (os.Signal, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "SIG") {
	case "KILL", "9":
		return os.Kill, nil
	case "INT", "2":
		return os.Interrupt, nil
	}
	return nil, fmt.Errorf("signal %q is not supported on this platform", name)
}

func signalName(sig os.Signal) string {
	return sig.String()
}

func statusOf(ps *os.ProcessState) Status {
	return Status{State: StateExited, Code: ps.ExitCode()}
}
