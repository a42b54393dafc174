// Package sessioncontext composes the final system prompt and
// user-context block from environment, project, and caller-supplied
// context (C5).
package sessioncontext

import (
	"fmt"
	"strings"

	"github.com/stakpak/agent-core/internal/contextbudget"
	"github.com/stakpak/agent-core/pkg/models"
)

// Tool is an available tool summary rendered under "## Available Tools".
type Tool struct {
	Name        string
	Description string
}

// Input bundles everything the builder needs for one session.
type Input struct {
	BasePrompt  string
	Tools       []Tool
	Environment *models.EnvironmentContext
	Project     *models.ProjectContext
	Caller      []*models.ContextFile // already validated + converted (C6)
	Budget      contextbudget.Params
}

// Build assembles the SessionContext per spec.md §4.5.
func Build(in Input) *models.SessionContext {
	systemPrompt := buildSystemPrompt(in.BasePrompt, in.Tools, in.Budget.SystemPromptMaxChars)

	files := make([]*models.ContextFile, 0, len(in.Project.Files)+len(in.Caller))
	files = append(files, in.Project.Files...)
	files = append(files, in.Caller...)
	admitted := contextbudget.Apply(files, in.Budget)

	userContextBlock := buildUserContextBlock(in.Environment, admitted)

	return &models.SessionContext{
		SystemPrompt:     systemPrompt,
		UserContextBlock: userContextBlock,
	}
}

func buildSystemPrompt(base string, tools []Tool, maxChars int) string {
	var parts []string

	trimmed := strings.TrimSpace(base)
	if trimmed != "" {
		parts = append(parts, trimmed)
	}

	if len(tools) > 0 {
		var b strings.Builder
		b.WriteString("## Available Tools")
		for _, t := range tools {
			b.WriteString("\n\n- ")
			b.WriteString(t.Name)
			if t.Description != "" {
				b.WriteString(": ")
				b.WriteString(t.Description)
			}
		}
		parts = append(parts, b.String())
	}

	joined := strings.Join(parts, "\n\n")
	truncated, _ := contextbudget.TruncateWithMarker(joined, "system prompt", maxChars)
	return truncated
}

func buildUserContextBlock(env *models.EnvironmentContext, files []*models.ContextFile) *string {
	var sections []string

	if env != nil {
		sections = append(sections, renderEnvironment(env))
	}

	for _, f := range files {
		sections = append(sections, renderContextFile(f))
	}

	if len(sections) == 0 {
		return nil
	}
	block := strings.Join(sections, "\n\n")
	return &block
}

func renderEnvironment(env *models.EnvironmentContext) string {
	var b strings.Builder
	b.WriteString("<local_context>\n")
	fmt.Fprintf(&b, "OS: %s\n", env.OS)
	fmt.Fprintf(&b, "Shell: %s\n", env.Shell)
	fmt.Fprintf(&b, "Cwd: %s\n", env.Cwd)
	fmt.Fprintf(&b, "DateTime (UTC): %s\n", env.DateTimeUTC)
	if env.GitBranch != nil {
		fmt.Fprintf(&b, "Git branch: %s\n", *env.GitBranch)
	}
	if env.GitRemote != nil {
		fmt.Fprintf(&b, "Git remote: %s\n", *env.GitRemote)
	}
	if env.DirectoryTree != "" {
		fmt.Fprintf(&b, "\n%s\n", env.DirectoryTree)
	}
	if env.Discovery != "" {
		fmt.Fprintf(&b, "\n%s\n", env.Discovery)
	}
	b.WriteString("</local_context>")
	return b.String()
}

func renderContextFile(f *models.ContextFile) string {
	switch strings.ToLower(f.Name) {
	case "agents.md":
		return fmt.Sprintf("<agents_md># AGENTS.md (from %s)\n\n%s</agents_md>", f.Path, f.Content)
	case "apps.md":
		return fmt.Sprintf("<apps_md># APPS.md (from %s)\n\n%s</apps_md>", f.Path, f.Content)
	default:
		return fmt.Sprintf(`<context_file name="%s" path="%s">%s</context_file>`,
			escapeXMLAttr(f.Name), escapeXMLAttr(f.Path), f.Content)
	}
}

// escapeXMLAttr escapes & " ' < > in that exact order, per spec.md §4.5.
func escapeXMLAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
