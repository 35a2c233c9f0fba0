package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Load reads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// cfgFile may be empty, in which case sqlbridge.yaml/.yml is searched in the
// current directory. Returns the config and the config file actually used
// (empty if none was found).
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"batch_size": DefaultBatchSize,
		"log_level":  DefaultLogLevel,
		"verbose":    false,
	}, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed := findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables (SQLBRIDGE_ prefix)
	// Transform: SQLBRIDGE_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider("SQLBRIDGE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SQLBRIDGE_"))
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	expandSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, configFileUsed, nil
}

// LoadFromFile reads configuration from an explicit file path only.
// Used by the resolver's hot reload, which must not re-read flags.
func LoadFromFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	expandSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile finds the config file to use.
// Priority: explicit path > sqlbridge.yaml > sqlbridge.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}

// FindConfigFileIn looks for a sqlbridge config file in dir.
// Returns empty string if not found.
func FindConfigFileIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// expandSecrets expands ${VAR} patterns in credential fields so passwords
// can live in the environment rather than the config file.
func expandSecrets(cfg *Config) {
	for id, conn := range cfg.Connections {
		conn.Username = expandEnvVars(conn.Username)
		conn.Password = expandEnvVars(conn.Password)
		conn.Host = expandEnvVars(conn.Host)
		conn.Database = expandEnvVars(conn.Database)
		cfg.Connections[id] = conn
	}
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unknown variables are left as-is.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, func(name string) string {
		if val := os.Getenv(name); val != "" {
			return val
		}
		return "${" + name + "}"
	})
}
