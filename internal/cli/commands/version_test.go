package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlbridge/internal/config"
	"github.com/leapstack-labs/sqlbridge/pkg/core"
)

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")
	var out strings.Builder
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "sqlbridge v1.2.3")
}

func TestConnectionsCommand_Empty(t *testing.T) {
	cmd := NewConnectionsCommand()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "No connections configured")
}

func TestConnectionsCommand_ListsConfigured(t *testing.T) {
	cfg := &config.Config{
		Connections: map[string]core.ConnConfig{
			"warehouse": {Type: "postgres", Host: "db.internal", Port: 5432, Database: "analytics"},
			"local":     {Type: "duckdb", Path: "./local.duckdb"},
		},
	}
	cfg.ApplyDefaults()

	cmd := NewConnectionsCommand()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetContext(WithCommandContext(context.Background(), &CommandContext{Cfg: cfg}))

	require.NoError(t, cmd.Execute())
	s := out.String()
	assert.Contains(t, s, "warehouse")
	assert.Contains(t, s, "db.internal:5432/analytics")
	assert.Contains(t, s, "local")
	assert.Contains(t, s, "./local.duckdb")
}
