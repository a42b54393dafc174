// Package config loads agent-core's runtime configuration, adapted
// from internal/config/config.go's viper-backed Load()/InitViper()
// pair: a config file (lowest priority) merged with environment
// variables (highest priority), resolved into a single Config struct.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration for one process.
type Config struct {
	DatabaseURL string
	MCPPort     int
	Debug       bool

	// DisableMCPMTLS corresponds to `mcp server --disable-mcp-mtls`.
	DisableMCPMTLS bool
	// ClientCAPEM is STAKPAK_MCP_CLIENT_CA; non-empty selects sandbox mode.
	ClientCAPEM string
	// EnableSlackTools corresponds to `mcp server --enable-slack-tools`.
	EnableSlackTools bool

	// SchedulerLocation names the IANA timezone cron is evaluated in;
	// "UTC" unless overridden (spec §9 open question resolution).
	SchedulerLocation string

	// Workspace overrides the project root used by discovery/project
	// context; empty means use the process's current directory.
	Workspace string
}

// InitViper wires the config-file + environment-variable sources,
// searching for config.yaml in the cwd and then in StakpakConfigDir().
func InitViper(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			if _, err := os.Stat(filepath.Join(cwd, "config.yaml")); err == nil {
				viper.AddConfigPath(cwd)
			}
		}
		viper.AddConfigPath(StakpakConfigDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "[config] using config file: %s\n", viper.ConfigFileUsed())
	}

	viper.AutomaticEnv()
	bindEnvVars()
	return nil
}

// bindEnvVars explicitly binds the environment variables spec.md §6
// names, so they always override a config file value regardless of
// whether AutomaticEnv has been turned on for this process.
func bindEnvVars() {
	viper.BindEnv("database_url", "STAKPAK_DATABASE_URL")
	viper.BindEnv("mcp_port", "STAKPAK_MCP_PORT")
	viper.BindEnv("debug", "STAKPAK_DEBUG")
	viper.BindEnv("client_ca_pem", "STAKPAK_MCP_CLIENT_CA")
	viper.BindEnv("scheduler_location", "STAKPAK_SCHEDULER_LOCATION")
	viper.BindEnv("workspace", "STAKPAK_WORKSPACE")
}

// setDefaults fills in viper's lowest-priority layer, so Load resolves
// sane values even for an entrypoint that never called InitViper (e.g.
// a container deployment that only sets env vars).
func setDefaults() {
	viper.SetDefault("database_url", DefaultDatabasePath())
	viper.SetDefault("mcp_port", 8586)
	viper.SetDefault("debug", false)
	viper.SetDefault("scheduler_location", "UTC")
}

// Load resolves the final Config by reading through viper, so a config
// file loaded by InitViper is honored, with environment variables
// (bound again here, since some entrypoints call Load without having
// called InitViper first) always taking priority over it.
func Load() (*Config, error) {
	bindEnvVars()
	setDefaults()

	mcpPort, err := resolvePort("STAKPAK_MCP_PORT", viper.GetString("mcp_port"), 8586)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:       viperStringOrDefault("database_url", DefaultDatabasePath()),
		MCPPort:           mcpPort,
		Debug:             viper.GetBool("debug"),
		ClientCAPEM:       viper.GetString("client_ca_pem"),
		SchedulerLocation: viperStringOrDefault("scheduler_location", "UTC"),
		Workspace:         viper.GetString("workspace"),
	}, nil
}

// viperStringOrDefault treats an explicitly-empty value the same as an
// unset one, so a blank-but-present environment variable (e.g. a shell
// that exports STAKPAK_SCHEDULER_LOCATION="") still resolves to def
// rather than an empty string, mirroring resolvePort's empty-is-default
// handling for every other string field with a non-empty default.
func viperStringOrDefault(key, def string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return def
}

// resolvePort mirrors spec.md §6: an invalid STAKPAK_MCP_PORT value is
// a fatal configuration error naming the offending value. envName is
// used only for the error message, since raw may have come from a
// config file rather than the environment.
func resolvePort(envName, raw string, defaultPort int) (int, error) {
	if raw == "" {
		return defaultPort, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid %s value %q: must be a port number between 1 and 65535", envName, raw)
	}
	return port, nil
}
