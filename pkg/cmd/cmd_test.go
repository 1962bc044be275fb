package cmd_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/stepflow/pkg/channels/kafka"
	"github.com/dukex/stepflow/pkg/cmd"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/dukex/stepflow/pkg/persistence/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()

	p, err := cmd.NewPersistence(ctx, slog.Default(), "file://"+root)
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)

	p, err = cmd.NewPersistence(ctx, slog.Default(), filepath.Join(root, "bare"))
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)

	server := miniredis.RunT(t)

	p, err = cmd.NewPersistence(ctx, slog.Default(), "redis://"+server.Addr())
	require.NoError(t, err)
	assert.IsType(t, &redis.Persistence{}, p)
	require.NoError(t, p.Close(ctx))

	_, err = cmd.NewPersistence(ctx, slog.Default(), "mongodb://localhost")
	require.Error(t, err)
}

func TestNewEventBus(t *testing.T) {
	t.Parallel()

	bus, err := cmd.NewEventBus("gochannel", nil, slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = cmd.NewEventBus("kafka", nil, slog.Default())
	require.ErrorIs(t, err, kafka.ErrNoBrokers)

	_, err = cmd.NewEventBus("nats", nil, slog.Default())
	require.Error(t, err)
}
