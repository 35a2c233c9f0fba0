// Package config loads sqlbridge configuration and resolves connection ids
// to connection parameters.
package config

import (
	"fmt"

	"github.com/leapstack-labs/sqlbridge/pkg/core"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "sqlbridge.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "sqlbridge.yml"

// Defaults.
const (
	DefaultBatchSize = 1000
	DefaultLogLevel  = "info"
)

// Config holds all sqlbridge configuration options.
type Config struct {
	// Connections maps caller-visible connection ids to their parameters.
	Connections map[string]core.ConnConfig `koanf:"connections"`

	// BatchSize is the default row count per result batch when a run does
	// not specify one.
	BatchSize int `koanf:"batch_size"`

	LogLevel string `koanf:"log_level"`
	Verbose  bool   `koanf:"verbose"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Connections == nil {
		c.Connections = make(map[string]core.ConnConfig)
	}
}

// Validate checks connection declarations for obvious mistakes.
func (c *Config) Validate() error {
	for id, conn := range c.Connections {
		if conn.Type == "" {
			return fmt.Errorf("connection %q: type is required", id)
		}
	}
	return nil
}
