// Package promptassembler builds the user prompt text and structured
// caller-context items for a scheduled run (C11), grounded on
// original_source/cli/src/commands/watch/prompt.rs.
package promptassembler

import (
	"fmt"
	"strings"

	"github.com/stakpak/agent-core/internal/contextbudget"
	"github.com/stakpak/agent-core/pkg/models"
)

const (
	promptFallbackStreamChars = 2_000
	callerContextStreamChars  = 20_000
)

// AssemblePrompt builds the user prompt: the schedule's prompt followed by
// an operational-context fallback block, so runs stay debuggable even if
// structured caller context is unavailable downstream.
func AssemblePrompt(schedule models.Schedule, checkResult *models.CheckResult) string {
	metadata := strings.Join(metadataLines(schedule, checkResult, promptFallbackStreamChars), "\n\n")

	prompt := schedule.Prompt
	if metadata != "" {
		prompt += "\n\n---\nOperational context fallback (use if structured context is missing):\n\n" + metadata
	}
	return prompt
}

// BuildCallerContext produces the structured caller-context item carrying
// the same metadata, meant for the context pipeline's priority/budget
// handling rather than the raw prompt.
func BuildCallerContext(schedule models.Schedule, checkResult *models.CheckResult) []models.CallerContextInput {
	lines := metadataLines(schedule, checkResult, callerContextStreamChars)
	return []models.CallerContextInput{
		{
			Name:     "watch_schedule_context",
			Content:  strings.Join(lines, "\n\n"),
			Priority: "high",
		},
	}
}

func metadataLines(schedule models.Schedule, result *models.CheckResult, streamLimit int) []string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Schedule: %s", schedule.Name))
	lines = append(lines, fmt.Sprintf("Cron: %s", schedule.Cron))

	if result != nil && schedule.Check != nil {
		lines = append(lines, fmt.Sprintf("Check script: %s", *schedule.Check))

		exitCode := -1
		if result.ExitCode != nil {
			exitCode = *result.ExitCode
		}
		lines = append(lines, fmt.Sprintf("Check exit code: %d", exitCode))

		if stdout := strings.TrimSpace(result.Stdout); stdout != "" {
			lines = append(lines, fmt.Sprintf("Check stdout:\n%s", contextbudget.TruncateCharsWithEllipsis(stdout, streamLimit)))
		}
		if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
			lines = append(lines, fmt.Sprintf("Check stderr:\n%s", contextbudget.TruncateCharsWithEllipsis(stderr, streamLimit)))
		}
	}

	if schedule.BoardID != nil {
		lines = append(lines, fmt.Sprintf("Board: %s", *schedule.BoardID))
	}

	return lines
}
