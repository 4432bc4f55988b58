package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/docqa/pkg/options/redis"
)

func TestParseMemoryInfo(t *testing.T) {
	info := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\nused_memory_rss:2000\r\n"
	stats := parseMemoryInfo(info)
	assert.Equal(t, int64(1048576), stats.UsedMemory)
	assert.Equal(t, "1.00M", stats.UsedMemoryHuman)
}

func TestNewNilOptions(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewInvalidOptions(t *testing.T) {
	opts := options.NewOptions()
	opts.Port = 0
	_, err := New(opts)
	assert.Error(t, err)
}

func TestNewWithLocalRedis(t *testing.T) {
	opts := options.NewOptions()
	opts.DialTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	client, err := NewWithContext(ctx, opts)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	require.NoError(t, client.Ping(ctx))
	assert.Equal(t, "redis", client.Name())
	assert.True(t, client.HealthWithStats(ctx).Healthy)

	mem, err := client.Memory(ctx)
	require.NoError(t, err)
	assert.Greater(t, mem.UsedMemory, int64(0))
}
