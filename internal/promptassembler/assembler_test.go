package promptassembler

import (
	"strings"
	"testing"
	"time"

	"github.com/stakpak/agent-core/pkg/models"
)

func fullSchedule() models.Schedule {
	check := "~/.stakpak/schedules/check-disk.sh"
	checkTimeout := 30 * time.Second
	boardID := "board_abc123"
	timeout := 30 * time.Minute
	return models.Schedule{
		Name:         "disk-cleanup",
		Cron:         "*/15 * * * *",
		Check:        &check,
		CheckTimeout: &checkTimeout,
		Prompt:       "Analyze disk usage and safely free up space.",
		BoardID:      &boardID,
		Timeout:      &timeout,
		Enabled:      true,
	}
}

func exitZeroResult(stdout string) *models.CheckResult {
	zero := 0
	return &models.CheckResult{ExitCode: &zero, Stdout: stdout}
}

// Scenario 4.
func TestAssemblePrompt_IncludesFallbackMetadata(t *testing.T) {
	schedule := fullSchedule()
	result := exitZeroResult("disk usage 92%")

	prompt := AssemblePrompt(schedule, result)
	for _, want := range []string{
		schedule.Prompt,
		"Operational context fallback",
		"Schedule: disk-cleanup",
		"Cron: */15 * * * *",
		"Check stdout:",
		"Board: board_abc123",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q, got:\n%s", want, prompt)
		}
	}
}

func TestBuildCallerContext_Basic(t *testing.T) {
	schedule := fullSchedule()
	result := exitZeroResult("disk usage 92%")

	ctx := BuildCallerContext(schedule, result)
	if len(ctx) != 1 {
		t.Fatalf("expected exactly one caller context item, got %d", len(ctx))
	}
	item := ctx[0]
	if item.Name != "watch_schedule_context" {
		t.Errorf("expected name watch_schedule_context, got %s", item.Name)
	}
	if item.Priority != "high" {
		t.Errorf("expected priority high, got %s", item.Priority)
	}
	if !strings.Contains(item.Content, "Schedule: disk-cleanup") {
		t.Errorf("expected schedule name in content")
	}
	if !strings.Contains(item.Content, "Cron: */15 * * * *") {
		t.Errorf("expected cron in content")
	}
	if !strings.Contains(item.Content, "Check stdout:") {
		t.Errorf("expected stdout section present")
	}
	if strings.Contains(item.Content, "Check stderr:") {
		t.Errorf("expected stderr section absent when stderr empty")
	}
	if !strings.Contains(item.Content, "Board: board_abc123") {
		t.Errorf("expected board id in content")
	}
}

func TestBuildCallerContext_WhitespaceOnlyStdoutOmitted(t *testing.T) {
	schedule := fullSchedule()
	two := 2
	result := &models.CheckResult{ExitCode: &two, Stdout: "   \n", Stderr: "error line"}

	ctx := BuildCallerContext(schedule, result)
	if strings.Contains(ctx[0].Content, "Check stdout:") {
		t.Errorf("expected stdout omitted when whitespace-only")
	}
	if !strings.Contains(ctx[0].Content, "Check stderr:") {
		t.Errorf("expected stderr present")
	}
}

func TestBuildCallerContext_NoCheckOmitsCheckLines(t *testing.T) {
	schedule := models.Schedule{
		Name:   "simple-task",
		Cron:   "0 * * * *",
		Prompt: "Do something simple.",
	}
	ctx := BuildCallerContext(schedule, nil)
	if len(ctx) != 1 {
		t.Fatalf("expected one item")
	}
	if !strings.Contains(ctx[0].Content, "Schedule: simple-task") {
		t.Errorf("expected schedule name")
	}
	if strings.Contains(ctx[0].Content, "Check script:") {
		t.Errorf("expected no check script line without a check result")
	}

	prompt := AssemblePrompt(schedule, nil)
	if !strings.Contains(prompt, "Schedule: simple-task") {
		t.Errorf("expected fallback metadata even without a check")
	}
}
