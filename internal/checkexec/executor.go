// Package checkexec runs a schedule's check script as a bounded child
// process (C9), grounded on pkg/harness/git/manager.go's exec.CommandContext
// shape, generalized from a fixed git argv to an arbitrary script path.
package checkexec

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/stakpak/agent-core/pkg/models"
)

const defaultTimeout = 30 * time.Second

// Run executes path as a child process with no shell, killing it on
// deadline. ~ and $VAR are expanded explicitly first; this documents and
// performs the expansion rather than relying on a platform shell.
func Run(ctx context.Context, path string, timeout *time.Duration) *models.CheckResult {
	d := defaultTimeout
	if timeout != nil {
		d = *timeout
	}

	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	expanded := expand(path)
	cmd := exec.CommandContext(cctx, expanded)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if cctx.Err() == context.DeadlineExceeded {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return &models.CheckResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			TimedOut: true,
		}
	}

	result := &models.CheckResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	code := exitCode(err)
	result.ExitCode = &code
	return result
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// expand resolves a leading ~ and $VAR/${VAR} references in path before
// it is handed to exec.CommandContext, since no shell performs this for us.
func expand(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := homeDir()
		if err == nil {
			if path == "~" {
				path = home
			} else if strings.HasPrefix(path, "~/") {
				path = filepath.Join(home, path[2:])
			}
		}
	}
	return os.Expand(path, os.Getenv)
}

func homeDir() (string, error) {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.HomeDir, nil
}
