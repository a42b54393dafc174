// Package warden validates a schedule's dispatch profile against the
// sandbox mount profiles the platform's Warden runtime-security layer
// supports, ported from original_source/cli/src/config/warden.rs.
package warden

import "fmt"

// Profile names a Warden volume-mount profile a dispatched run executes
// under.
type Profile string

const (
	// ProfileDefault mounts the stakpak agent defaults read-write where
	// the working directory requires it.
	ProfileDefault Profile = "default"
	// ProfileReadonly mounts every volume read-only, per
	// WardenConfig::readonly_profile.
	ProfileReadonly Profile = "readonly"
)

// DefaultMounts is the single source of truth for every path the agent
// container needs, ported verbatim from stakpak_agent_default_mounts.
var DefaultMounts = []string{
	"~/.stakpak/config.toml:/home/agent/.stakpak/config.toml:ro",
	"~/.stakpak/auth.toml:/home/agent/.stakpak/auth.toml:ro",
	"~/.stakpak/data/local.db:/home/agent/.stakpak/data/local.db",
	"~/.agent-board/data.db:/home/agent/.agent-board/data.db",
	"./:/agent:ro",
	"./.stakpak:/agent/.stakpak",
	"~/.aws:/home/agent/.aws:ro",
	"~/.config/gcloud:/home/agent/.config/gcloud:ro",
	"~/.digitalocean:/home/agent/.digitalocean:ro",
	"~/.azure:/home/agent/.azure:ro",
	"~/.kube:/home/agent/.kube:ro",
	"stakpak-aqua-cache:/home/agent/.local/share/aquaproj-aqua",
}

// ValidateProfile rejects an unrecognized profile name before dispatch,
// so a typo'd schedule fails fast at schedule-save time or when the
// scheduler loads it, rather than surfacing as an opaque agent-side error.
func ValidateProfile(profile *string) error {
	if profile == nil || *profile == "" {
		return nil
	}
	switch Profile(*profile) {
	case ProfileDefault, ProfileReadonly:
		return nil
	default:
		return fmt.Errorf("unknown warden profile %q: must be %q or %q", *profile, ProfileDefault, ProfileReadonly)
	}
}
