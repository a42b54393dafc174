package discovery

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// probeCron dispatches to the OS-specific scheduled-task reader (spec.md
// §4.1). A failure localizes to a placeholder line rather than propagating.
func probeCron(ctx context.Context, cwd string) string {
	var lines []string

	switch runtime.GOOS {
	case "linux":
		lines = cronLinux(ctx)
	case "darwin":
		lines = cronDarwin(ctx)
	case "windows":
		lines = cronWindows(ctx)
	}

	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Scheduled Tasks\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "- %s\n", l)
	}
	return b.String()
}

func userCrontabLines(ctx context.Context) []string {
	out, err := exec.CommandContext(ctx, "crontab", "-l").CombinedOutput()
	if err != nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func cronLinux(ctx context.Context) []string {
	lines := userCrontabLines(ctx)

	etcDirs := []string{"/etc/cron.d", "/etc/cron.daily", "/etc/cron.hourly", "/etc/cron.weekly", "/etc/cron.monthly"}
	count := 0
	for _, dir := range etcDirs {
		entries, err := os.ReadDir(dir)
		if err == nil {
			count += len(entries)
		}
	}
	if count > 0 {
		lines = append(lines, fmt.Sprintf("%d system cron job(s) under /etc/cron.*", count))
	}

	out, err := exec.CommandContext(ctx, "systemctl", "list-timers", "--no-pager").CombinedOutput()
	if err == nil {
		timerLines := strings.Split(strings.TrimSpace(string(out)), "\n")
		if len(timerLines) > 20 {
			timerLines = timerLines[:20]
		}
		lines = append(lines, timerLines...)
	} else {
		return append(lines, "(failed to query scheduled tasks)")
	}

	return lines
}

func cronDarwin(ctx context.Context) []string {
	lines := userCrontabLines(ctx)

	home, err := os.UserHomeDir()
	if err != nil {
		return lines
	}
	agentsDir := filepath.Join(home, "Library", "LaunchAgents")
	entries, err := os.ReadDir(agentsDir)
	if err != nil {
		return lines
	}
	count := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".plist") {
			lines = append(lines, e.Name())
			count++
			if count >= 20 {
				break
			}
		}
	}
	return lines
}

func cronWindows(ctx context.Context) []string {
	out, err := exec.CommandContext(ctx, "schtasks", "/Query", "/FO", "LIST", "/V").CombinedOutput()
	if err != nil {
		return []string{"(failed to query scheduled tasks)"}
	}

	var lines []string
	for _, block := range strings.Split(string(out), "\n\n") {
		var taskName string
		for _, line := range strings.Split(block, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "TaskName:") {
				taskName = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "TaskName:"))
				break
			}
		}
		if taskName == "" || strings.HasPrefix(taskName, `\Microsoft\`) {
			continue
		}
		lines = append(lines, taskName)
		if len(lines) >= 30 {
			break
		}
	}
	return lines
}
