package config

import (
	"os"
	"path/filepath"
)

// StakpakConfigDir returns ~/.stakpak, overridable via STAKPAK_WORKSPACE
// for sandboxed/test runs, following the platform's GetStationConfigDir
// workspace-override convention.
func StakpakConfigDir() string {
	if workspace := os.Getenv("STAKPAK_WORKSPACE"); workspace != "" {
		return filepath.Join(workspace, ".stakpak")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stakpak"
	}
	return filepath.Join(home, ".stakpak")
}

// DefaultDatabasePath is the schedule store's default location, matching
// the mount path pinned in the volume mount profile
// (~/.stakpak/data/local.db).
func DefaultDatabasePath() string {
	return filepath.Join(StakpakConfigDir(), "data", "local.db")
}
