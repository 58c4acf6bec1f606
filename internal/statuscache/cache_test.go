package statuscache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"transkribator/internal/progress"
	"transkribator/internal/queue"
	"transkribator/internal/statuscache"
)

// setupRedis spins up a Redis container and returns its URL.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return "redis://" + host + ":" + port.Port()
}

func TestNewRedisMirrorRejectsBadURL(t *testing.T) {
	_, err := statuscache.NewRedisMirror("http://nope", "", time.Minute)
	assert.Error(t, err)
}

func TestKeysUsePrefix(t *testing.T) {
	m, err := statuscache.NewRedisMirror("redis://localhost:6379/0", "tk", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "tk:job:12", m.JobKey(12))
	assert.Equal(t, "tk:job-updates", m.Channel())
}

func TestPublishAndOutcome(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRedis(t)
	mirror, err := statuscache.NewRedisMirror(url, "test", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mirror.Close() })
	ctx := context.Background()
	require.NoError(t, mirror.Ping(ctx))

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	subscriber := redis.NewClient(opts)
	t.Cleanup(func() { _ = subscriber.Close() })
	sub := subscriber.Subscribe(ctx, mirror.Channel())
	t.Cleanup(func() { _ = sub.Close() })
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, mirror.Publish(ctx, progress.Update{JobID: 5, UserID: 1, Progress: 33, Message: "Transcribe Media", At: time.Now()}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var update progress.Update
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &update))
	assert.Equal(t, int64(5), update.JobID)
	assert.Equal(t, 33, update.Progress)

	snap, found, err := mirror.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 33, snap.Progress)
	assert.Equal(t, "Transcribe Media", snap.Message)
	assert.Equal(t, queue.StatusInProgress, snap.Status)

	require.NoError(t, mirror.RecordOutcome(ctx, &queue.Job{ID: 5, UserID: 1}, queue.StatusCompleted, ""))
	snap, found, err = mirror.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, queue.StatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)

	_, found, err = mirror.Get(ctx, 999)
	require.NoError(t, err)
	assert.False(t, found)
}
