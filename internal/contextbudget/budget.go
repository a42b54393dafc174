// Package contextbudget implements the character-budget engine (C4):
// per-file and total-chars budgets with priority-aware truncation.
//
// All arithmetic here is in Unicode scalar values (runes), never bytes.
package contextbudget

import (
	"fmt"
	"sort"

	"github.com/stakpak/agent-core/pkg/models"
)

// Params bundles the budget knobs. Defaults match spec.md §4.3.
type Params struct {
	SystemPromptMaxChars int
	PerFileMaxChars      int
	TotalContextMaxChars int
	HeadRatio            float64
	TailRatio            float64
}

// DefaultParams returns the spec's documented defaults.
func DefaultParams() Params {
	return Params{
		SystemPromptMaxChars: 32_000,
		PerFileMaxChars:      20_000,
		TotalContextMaxChars: 100_000,
		HeadRatio:            0.7,
		TailRatio:            0.2,
	}
}

// minAdmitRemaining is the smallest remaining space (in chars) at which a
// non-Critical file that doesn't fit whole is still admitted truncated.
const minAdmitRemaining = 64

// defaultHeadRatio/defaultTailRatio are spec.md's documented defaults,
// used by TruncateWithMarker for callers that don't carry a Params.
const (
	defaultHeadRatio = 0.7
	defaultTailRatio = 0.2
)

// TruncateWithMarker truncates content to at most max characters using the
// spec's default head/tail ratios, inserting a marker naming what was cut.
// Returns the (possibly unchanged) content and whether truncation occurred.
func TruncateWithMarker(content, name string, max int) (string, bool) {
	return TruncateWithMarkerRatios(content, name, max, defaultHeadRatio, defaultTailRatio)
}

// TruncateWithMarkerRatios is like TruncateWithMarker but honors custom
// head/tail ratios from Params instead of the hardcoded spec defaults.
func TruncateWithMarkerRatios(content, name string, max int, headRatio, tailRatio float64) (string, bool) {
	runes := []rune(content)

	if max <= 0 {
		return "", len(runes) > 0
	}
	if len(runes) <= max {
		return content, false
	}

	marker := fmt.Sprintf("\n[... truncated %s; read file for full content ...]\n", name)
	markerRunes := []rune(marker)
	markerLen := len(markerRunes)

	if markerLen >= max {
		return string(runes[:max]), true
	}

	available := max - markerLen
	head := int(float64(available) * headRatio)
	tail := int(float64(available) * tailRatio)
	if head+tail > available {
		tail = available - head
	}
	if head+tail < available {
		head += available - (head + tail)
	}

	headChars := string(runes[:head])
	tailChars := ""
	if tail > 0 {
		tailChars = string(runes[len(runes)-tail:])
	}

	return headChars + marker + tailChars, true
}

// TruncateCharsWithEllipsis does plain character-count truncation with a
// trailing "..." marker, used by the prompt assembler (C11) for check
// stdout/stderr. Returns the input unchanged when it already fits, with no
// ellipsis appended.
func TruncateCharsWithEllipsis(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 0 {
		return "..."
	}
	return string(runes[:limit]) + "..."
}

// ApplyPerFile runs Phase A: per-file truncation using PerFileMaxChars.
// Files are mutated in place (Content/Truncated); OriginalSize is untouched.
func ApplyPerFile(files []*models.ContextFile, p Params) {
	for _, f := range files {
		truncated, didTruncate := TruncateWithMarkerRatios(f.Content, f.Name, p.PerFileMaxChars, p.HeadRatio, p.TailRatio)
		f.Content = truncated
		if didTruncate {
			f.Truncated = true
		}
	}
}

// ApplyTotal runs Phase B: re-order by priority and admit files while
// TotalContextMaxChars remains, per spec.md §4.3's admission rule.
//
// A file that fits whole is taken whole. A file that doesn't fit is still
// admitted (further truncated to remaining space) iff its priority is
// Critical or the remaining space is >= minAdmitRemaining chars; otherwise
// it is dropped. After the first truncated admission, remaining space
// becomes 0 and subsequent non-critical files are dropped.
func ApplyTotal(files []*models.ContextFile, p Params) []*models.ContextFile {
	ordered := make([]*models.ContextFile, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	remaining := p.TotalContextMaxChars
	kept := make([]*models.ContextFile, 0, len(ordered))

	for _, f := range ordered {
		size := len([]rune(f.Content))

		if size <= remaining {
			kept = append(kept, f)
			remaining -= size
			continue
		}

		if f.Priority == models.PriorityCritical || remaining >= minAdmitRemaining {
			truncated, didTruncate := TruncateWithMarkerRatios(f.Content, f.Name, remaining, p.HeadRatio, p.TailRatio)
			f.Content = truncated
			if didTruncate {
				f.Truncated = true
			}
			kept = append(kept, f)
			remaining = 0
			continue
		}

		// Dropped: too small a remainder and not Critical.
	}

	return kept
}

// Apply runs both phases in order and returns the admitted file list.
func Apply(files []*models.ContextFile, p Params) []*models.ContextFile {
	ApplyPerFile(files, p)
	return ApplyTotal(files, p)
}
