package checkexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "check.sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRun_ExitZero(t *testing.T) {
	path := writeScript(t, "#!/bin/sh\necho disk usage 92%\nexit 0\n")
	result := Run(context.Background(), path, nil)
	if result.TimedOut {
		t.Fatalf("expected not timed out")
	}
	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %v", result.ExitCode)
	}
	if result.Stdout != "disk usage 92%\n" {
		t.Fatalf("unexpected stdout %q", result.Stdout)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	path := writeScript(t, "#!/bin/sh\necho bad >&2\nexit 7\n")
	result := Run(context.Background(), path, nil)
	if result.ExitCode == nil || *result.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %v", result.ExitCode)
	}
	if result.Stderr != "bad\n" {
		t.Fatalf("unexpected stderr %q", result.Stderr)
	}
}

func TestRun_Timeout(t *testing.T) {
	path := writeScript(t, "#!/bin/sh\nsleep 5\n")
	timeout := 50 * time.Millisecond
	result := Run(context.Background(), path, &timeout)
	if !result.TimedOut {
		t.Fatalf("expected timed out")
	}
	if result.ExitCode != nil {
		t.Fatalf("expected absent exit code on timeout, got %v", *result.ExitCode)
	}
}

func TestExpand_TildeAndEnvVar(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir available")
	}
	if got := expand("~/checks/disk.sh"); got != filepath.Join(home, "checks/disk.sh") {
		t.Fatalf("expected tilde expansion, got %q", got)
	}

	t.Setenv("CHECK_DIR", "/opt/checks")
	if got := expand("$CHECK_DIR/disk.sh"); got != "/opt/checks/disk.sh" {
		t.Fatalf("expected env var expansion, got %q", got)
	}
}
