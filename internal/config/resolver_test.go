package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlbridge/pkg/core"
)

func newTestResolver(conns map[string]core.ConnConfig, path string) *Resolver {
	return NewResolver(&Config{Connections: conns}, path, nil)
}

func TestResolver_Resolve(t *testing.T) {
	r := newTestResolver(map[string]core.ConnConfig{
		"warehouse": {Type: "postgres", Database: "analytics"},
	}, "")

	cfg, err := r.Resolve("warehouse")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Type)

	_, err = r.Resolve("ghost")
	require.Error(t, err)

	var unknownErr *UnknownConnectionError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "ghost", unknownErr.ID)
	assert.Equal(t, []string{"warehouse"}, unknownErr.Available)
}

func TestResolver_IDsSorted(t *testing.T) {
	r := newTestResolver(map[string]core.ConnConfig{
		"b": {Type: "sqlite"},
		"a": {Type: "sqlite"},
		"c": {Type: "sqlite"},
	}, "")

	assert.Equal(t, []string{"a", "b", "c"}, r.IDs())
}

func TestResolver_ReloadWithoutBackingFile(t *testing.T) {
	r := newTestResolver(nil, "")
	require.NoError(t, r.Reload())
}

func TestResolver_Reload(t *testing.T) {
	path := writeConfig(t, `
connections:
  first:
    type: sqlite
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	r := NewResolver(cfg, path, nil)

	require.NoError(t, os.WriteFile(path, []byte(`
connections:
  first:
    type: sqlite
  second:
    type: duckdb
`), 0o644))

	require.NoError(t, r.Reload())
	assert.Equal(t, []string{"first", "second"}, r.IDs())
}

func TestResolver_ReloadFailureKeepsPrevious(t *testing.T) {
	path := writeConfig(t, `
connections:
  first:
    type: sqlite
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	r := NewResolver(cfg, path, nil)

	// A connection without a type fails validation on reload.
	require.NoError(t, os.WriteFile(path, []byte(`
connections:
  broken:
    host: nowhere
`), 0o644))

	require.Error(t, r.Reload())
	assert.Equal(t, []string{"first"}, r.IDs(), "the previous connection set survives")
}

func TestResolver_WatchPicksUpChanges(t *testing.T) {
	path := writeConfig(t, `
connections:
  first:
    type: sqlite
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	r := NewResolver(cfg, path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan error, 1)
	go func() { watchDone <- r.Watch(ctx) }()

	// Give the watcher a moment to arm before rewriting the file.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`
connections:
  replaced:
    type: duckdb
`), 0o644))

	assert.Eventually(t, func() bool {
		ids := r.IDs()
		return len(ids) == 1 && ids[0] == "replaced"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-watchDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}

func TestResolver_WatchWithoutBackingFile(t *testing.T) {
	r := newTestResolver(nil, "")
	require.NoError(t, r.Watch(context.Background()))
}
