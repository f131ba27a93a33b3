package agentflow

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// runCheckpointStoreTests exercises the CheckpointStore contract shared by
// every backend.
func runCheckpointStoreTests(t *testing.T, store CheckpointStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("load of unknown thread is not found", func(t *testing.T) {
		_, err := store.Load(ctx, "unknown-thread")
		require.ErrorIs(t, err, ErrCheckpointNotFound)
	})

	t.Run("save then load round trips", func(t *testing.T) {
		checkpoint := &Checkpoint{
			ThreadID: "thread-1",
			State: &RunState{
				UserInput:    "create a job",
				RunID:        "run_01",
				ThreadID:     "thread-1",
				RouteTargets: []string{"finance_agent"},
				Messages:     []string{"prepared"},
			},
			NextNode:  "orchestrate",
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, store.Save(ctx, checkpoint))

		loaded, err := store.Load(ctx, "thread-1")
		require.NoError(t, err)
		require.Equal(t, "thread-1", loaded.ThreadID)
		require.Equal(t, "orchestrate", loaded.NextNode)
		require.Equal(t, checkpoint.State.Messages, loaded.State.Messages)
		require.False(t, loaded.Terminal())
	})

	t.Run("last writer wins", func(t *testing.T) {
		first := &Checkpoint{
			ThreadID:  "thread-2",
			State:     &RunState{ThreadID: "thread-2"},
			NextNode:  "gate",
			CreatedAt: time.Now(),
		}
		require.NoError(t, store.Save(ctx, first))

		second := &Checkpoint{
			ThreadID: "thread-2",
			State: &RunState{
				ThreadID:    "thread-2",
				FinalResult: &FinalOutcome{Status: OutcomeSuccess, Message: "done"},
			},
			CreatedAt: time.Now(),
		}
		require.NoError(t, store.Save(ctx, second))

		loaded, err := store.Load(ctx, "thread-2")
		require.NoError(t, err)
		require.True(t, loaded.Terminal())
	})

	t.Run("delete removes the checkpoint", func(t *testing.T) {
		checkpoint := &Checkpoint{
			ThreadID:  "thread-3",
			State:     &RunState{ThreadID: "thread-3"},
			NextNode:  "gate",
			CreatedAt: time.Now(),
		}
		require.NoError(t, store.Save(ctx, checkpoint))
		require.NoError(t, store.Delete(ctx, "thread-3"))

		_, err := store.Load(ctx, "thread-3")
		require.ErrorIs(t, err, ErrCheckpointNotFound)
	})

	t.Run("delete of unknown thread is not an error", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "never-seen"))
	})
}

func TestMemoryCheckpointStore(t *testing.T) {
	runCheckpointStoreTests(t, NewMemoryCheckpointStore())
}

func TestFileCheckpointStore(t *testing.T) {
	store, err := NewFileCheckpointStore(t.TempDir())
	require.NoError(t, err)
	runCheckpointStoreTests(t, store)
}

func TestRedisCheckpointStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	runCheckpointStoreTests(t, NewRedisCheckpointStore(client, time.Hour))
}

func TestPostgresCheckpointStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	store, err := NewPostgresCheckpointStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	runCheckpointStoreTests(t, store)
}
