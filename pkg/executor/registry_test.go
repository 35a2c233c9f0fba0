package executor

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlbridge/pkg/core"
)

type nopExecutor struct {
	BaseSQLExecutor
}

func (e *nopExecutor) Connect(context.Context, core.ConnConfig) error { return nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	Register("test-engine-a", func(logger *slog.Logger) Executor {
		return &nopExecutor{}
	})

	factory, ok := Get("test-engine-a")
	require.True(t, ok)
	assert.NotNil(t, factory(nil))

	_, ok = Get("test-engine-missing")
	assert.False(t, ok)

	assert.True(t, IsRegistered("test-engine-a"))
	assert.False(t, IsRegistered("test-engine-missing"))
	assert.Contains(t, ListEngines(), "test-engine-a")
}

func TestRegistry_New(t *testing.T) {
	Register("test-engine-b", func(logger *slog.Logger) Executor {
		return &nopExecutor{}
	})

	exec, err := New(core.ConnConfig{Type: "test-engine-b"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, exec)
}

func TestRegistry_NewRequiresType(t *testing.T) {
	_, err := New(core.ConnConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine type not specified")
}

func TestRegistry_NewUnknownEngine(t *testing.T) {
	_, err := New(core.ConnConfig{Type: "oracle"}, nil)
	require.Error(t, err)

	var unknownErr *UnknownEngineError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "oracle", unknownErr.Type)
	assert.Contains(t, err.Error(), `unknown engine type "oracle"`)
	assert.Contains(t, err.Error(), "sqlbridge.yaml")
}
