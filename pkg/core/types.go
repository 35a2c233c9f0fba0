// Package core defines the shared domain types for sqlbridge.
//
// This package contains the data shapes passed between the bridge server,
// the session registry, and the engine executors. It deliberately has no
// dependencies beyond the standard library so every other package can
// import it freely.
package core

// ConnConfig holds the parameters needed to open a connection to one
// configured database. File-backed engines (duckdb, sqlite) use Path;
// server engines (postgres, mysql) use Host/Port/Database/credentials.
type ConnConfig struct {
	Type     string            `koanf:"type" json:"type"`
	Path     string            `koanf:"path" json:"path,omitempty"`
	Host     string            `koanf:"host" json:"host,omitempty"`
	Port     int               `koanf:"port" json:"port,omitempty"`
	Database string            `koanf:"database" json:"database,omitempty"`
	Username string            `koanf:"username" json:"username,omitempty"`
	Password string            `koanf:"password" json:"-"`
	Options  map[string]string `koanf:"options" json:"options,omitempty"`
	Params   map[string]any    `koanf:"params" json:"params,omitempty"`
}

// Column describes one column of a streamed result set.
// Descriptors are captured once per execution and reused for every batch.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
	Position int    `json:"position"`
}
