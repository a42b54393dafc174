// Package skillref normalizes remote skill URIs and maps remote skill
// listings into ContextFiles, ported from
// original_source/cli/src/utils/server_context.rs.
package skillref

import (
	"fmt"
	"strings"

	"github.com/stakpak/agent-core/pkg/models"
)

const scheme = "stakpak://"

// NormalizeURI preserves a URI that already carries the stakpak://
// scheme, and prefixes any other URI with it after stripping a leading
// slash. Idempotent (P8).
func NormalizeURI(uri string) string {
	if strings.HasPrefix(uri, scheme) {
		return uri
	}
	return scheme + strings.TrimLeft(uri, "/")
}

// RuleBook is one entry from the remote skill/rulebook listing API.
type RuleBook struct {
	ID          string
	URI         string
	Description string
	Tags        []string
}

// MapRemoteSkillsToContextFiles converts a remote-skill listing payload
// into High-priority ContextFiles for the session context pipeline.
func MapRemoteSkillsToContextFiles(entries []RuleBook) []*models.ContextFile {
	files := make([]*models.ContextFile, 0, len(entries))
	for _, entry := range entries {
		content := fmt.Sprintf("<remote_skill>\nURI: %s\nDescription: %s\nTags: %s\n</remote_skill>",
			entry.URI, entry.Description, strings.Join(entry.Tags, ", "))
		files = append(files, models.NewContextFile(
			"remote_skill:"+entry.URI,
			NormalizeURI(entry.URI),
			content,
			models.PriorityHigh,
		))
	}
	return files
}
