package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlbridge/pkg/core"
	"github.com/leapstack-labs/sqlbridge/pkg/executor"
)

func newConnected(t *testing.T) *Executor {
	t.Helper()

	e := New(nil)
	require.NoError(t, e.Connect(context.Background(), core.ConnConfig{Type: "sqlite"}))
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestExecutor_StreamQuery(t *testing.T) {
	e := newConnected(t)
	ctx := context.Background()

	_, err := e.Conn.ExecContext(ctx, `CREATE TABLE events (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		_, err := e.Conn.ExecContext(ctx, `INSERT INTO events (name) VALUES (?)`, "event")
		require.NoError(t, err)
	}

	var sizes []int
	var cols []core.Column
	exec, err := e.StreamQuery(ctx, executor.StreamOptions{
		SQL:       "SELECT id, name FROM events ORDER BY id",
		BatchSize: 10,
		OnBatch: func(rows [][]any, c []core.Column) error {
			sizes = append(sizes, len(rows))
			cols = c
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, exec.Wait(ctx))

	assert.Equal(t, []int{10, 10, 5}, sizes)
	assert.Equal(t, int64(25), exec.Rows())
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "name", cols[1].Name)
}

func TestExecutor_CancelInterruptsStatement(t *testing.T) {
	e := newConnected(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var enteredOnce bool

	// A generated series large enough that it cannot finish before the
	// cancel lands.
	exec, err := e.StreamQuery(ctx, executor.StreamOptions{
		SQL: `WITH RECURSIVE seq(n) AS (
			SELECT 1 UNION ALL SELECT n + 1 FROM seq WHERE n < 1000000
		) SELECT n FROM seq`,
		BatchSize: 100,
		OnBatch: func([][]any, []core.Column) error {
			if !enteredOnce {
				enteredOnce = true
				close(entered)
				<-release
			}
			return nil
		},
	})
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(10 * time.Second):
		t.Fatal("stream never delivered its first batch")
	}

	require.NoError(t, exec.Cancel(ctx))
	time.Sleep(100 * time.Millisecond)
	close(release)

	require.NoError(t, exec.Wait(ctx), "cancellation is not an error")
	assert.True(t, exec.Cancelled())
	assert.Less(t, exec.Rows(), int64(1000000))
}

func TestExecutor_ConnectBadPath(t *testing.T) {
	e := New(nil)
	err := e.Connect(context.Background(), core.ConnConfig{
		Type: "sqlite",
		Path: "/nonexistent-dir/no-such-file.db",
	})
	require.Error(t, err)
	assert.False(t, e.IsConnected())
}
