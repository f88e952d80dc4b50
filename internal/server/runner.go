package server

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// Runner runs the analyzer as a subprocess in dir.
type Runner interface {
	Run(ctx context.Context, dir string, args []string) (stdout, stderr []byte, err error)
}

// ExecRunner runs Binary with exec.CommandContext. An empty Binary means
// the running executable.
type ExecRunner struct {
	Binary string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir string, args []string) ([]byte, []byte, error) {
	bin := r.Binary
	if bin == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, nil, err
		}
		bin = self
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
