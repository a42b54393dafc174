// Package environment captures the host/OS/shell/cwd/git snapshot (C2).
// Captured once at process start into an immutable struct; no component
// reads environment variables from it after construction (spec.md §9).
package environment

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/stakpak/agent-core/internal/discovery"
	"github.com/stakpak/agent-core/pkg/models"
)

// Capture builds an EnvironmentContext for cwd, running discovery probes
// to populate the Discovery field. ctx bounds the git/probe subprocess
// calls.
func Capture(ctx context.Context, cwd string) *models.EnvironmentContext {
	env := &models.EnvironmentContext{
		OS:          runtime.GOOS,
		Shell:       shell(),
		Cwd:         cwd,
		DateTimeUTC: time.Now().UTC().Format(time.RFC3339),
	}

	if branch, ok := gitBranch(ctx, cwd); ok {
		env.GitBranch = &branch
	}
	if remote, ok := gitRemote(ctx, cwd); ok {
		env.GitRemote = &remote
	}

	env.DirectoryTree = directoryTree(cwd)
	env.Discovery = discovery.RunAll(ctx, cwd)

	return env
}

func shell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	if runtime.GOOS == "windows" {
		return "cmd.exe"
	}
	return "/bin/sh"
}

func gitBranch(ctx context.Context, dir string) (string, bool) {
	head, err := os.ReadFile(dir + "/.git/HEAD")
	if err != nil {
		return "", false
	}
	content := strings.TrimSpace(string(head))
	if strings.HasPrefix(content, "ref: refs/heads/") {
		return strings.TrimPrefix(content, "ref: refs/heads/"), true
	}
	if len(content) >= 8 {
		return content[:8], true
	}
	return content, content != ""
}

func gitRemote(ctx context.Context, dir string) (string, bool) {
	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", false
	}
	remote := strings.TrimSpace(string(out))
	return remote, remote != ""
}

// directoryTree lists immediate children of dir, one name per line, with
// directories suffixed by "/"; deeper listing is left to the
// project/discovery probes.
func directoryTree(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return strings.Join(names, "\n")
}
