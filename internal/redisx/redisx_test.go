package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTripAndLock(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	type point struct{ Lat, Lng float64 }
	var got point
	ok, err := c.GetJSON(ctx, "geo:x", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, "geo:x", point{12.9, 77.6}, time.Minute))
	ok, err = c.GetJSON(ctx, "geo:x", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, point{12.9, 77.6}, got)

	first, err := c.SetNX(ctx, "lock", "1", time.Second)
	require.NoError(t, err)
	second, err := c.SetNX(ctx, "lock", "1", time.Second)
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	mr.FastForward(2 * time.Second)
	exists, err := c.Exists(ctx, "lock")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, c.Del(ctx, "geo:x"))
	ok, _ = c.GetJSON(ctx, "geo:x", &got)
	assert.False(t, ok)
}
