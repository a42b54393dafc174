package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"STAKPAK_DATABASE_URL", "STAKPAK_MCP_PORT", "STAKPAK_DEBUG",
		"STAKPAK_MCP_CLIENT_CA", "STAKPAK_SCHEDULER_LOCATION", "STAKPAK_WORKSPACE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MCPPort != 8586 {
		t.Fatalf("expected default MCP port 8586, got %d", cfg.MCPPort)
	}
	if cfg.SchedulerLocation != "UTC" {
		t.Fatalf("expected default scheduler location UTC, got %q", cfg.SchedulerLocation)
	}
	if cfg.Debug {
		t.Fatalf("expected debug off by default")
	}
}

func TestLoad_InvalidPortIsFatal(t *testing.T) {
	t.Setenv("STAKPAK_MCP_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func TestStakpakConfigDir_WorkspaceOverride(t *testing.T) {
	t.Setenv("STAKPAK_WORKSPACE", "/tmp/example-workspace")
	if got := StakpakConfigDir(); got != "/tmp/example-workspace/.stakpak" {
		t.Fatalf("expected workspace-relative config dir, got %q", got)
	}
}
