package scanner_test

import (
	"testing"
	"time"

	"github.com/dukex/signoff/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisLease(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := t.Context()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "redis")
	require.NoError(t, err)

	client, err := scanner.ConnectRedis(ctx, endpoint)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	first := scanner.NewRedisLease(client, "test:lease")
	second := scanner.NewRedisLease(client, "test:lease")

	ok, err := first.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Only the holder's release frees the key.
	require.NoError(t, second.Release(ctx))

	ok, err = second.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))

	ok, err = second.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
