// Package callercontext validates externally supplied context items
// before they are folded into a session (C6).
package callercontext

import (
	"fmt"
	"strings"

	"github.com/stakpak/agent-core/pkg/models"
)

const (
	MaxItems             = 32
	MaxNameChars         = 256
	MaxContentChars      = 50_000
	MaxTotalContentChars = 500_000
)

// Validate enforces the batch/length limits on caller-supplied context
// items. All counts are raw (untrimmed) character counts; empty names or
// content after trimming are accepted here and dropped downstream.
func Validate(items []models.CallerContextInput) error {
	if len(items) > MaxItems {
		return fmt.Errorf("caller context batch exceeds limit of %d items (got %d)", MaxItems, len(items))
	}

	var total int
	for _, item := range items {
		if n := len([]rune(item.Name)); n > MaxNameChars {
			return fmt.Errorf("caller context item name exceeds limit of %d characters (got %d)", MaxNameChars, n)
		}
		n := len([]rune(item.Content))
		if n > MaxContentChars {
			return fmt.Errorf("caller context item content exceeds limit of %d characters (got %d)", MaxContentChars, n)
		}
		// Saturating add: total cannot overflow past MaxTotalContentChars+1 bound.
		if total > MaxTotalContentChars-n {
			total = MaxTotalContentChars + 1
		} else {
			total += n
		}
	}
	if total > MaxTotalContentChars {
		return fmt.Errorf("caller context total content exceeds limit of %d characters", MaxTotalContentChars)
	}

	return nil
}

// ToContextFiles converts validated caller-context items into
// CallerSupplied ContextFiles, silently dropping items whose trimmed name
// or content is empty.
func ToContextFiles(items []models.CallerContextInput) []*models.ContextFile {
	files := make([]*models.ContextFile, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		content := strings.TrimSpace(item.Content)
		if name == "" || content == "" {
			continue
		}
		files = append(files, models.NewContextFile(name, "", item.Content, models.PriorityCallerSupplied))
	}
	return files
}
