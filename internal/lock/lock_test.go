package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, wait time.Duration) *RedisLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, 5*time.Second, wait)
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	l := newLocker(t, 0)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "proforma:1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "proforma:1")
	assert.ErrorIs(t, err, ErrNotObtained)

	other, err := l.Acquire(ctx, "proforma:2")
	require.NoError(t, err, "different keys do not contend")
	other()

	release()
	again, err := l.Acquire(ctx, "proforma:1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	l := newLocker(t, time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "invoice:1")
	require.NoError(t, err)
	go func() {
		time.Sleep(100 * time.Millisecond)
		release()
	}()

	second, err := l.Acquire(ctx, "invoice:1")
	require.NoError(t, err)
	second()
}

func TestNoop(t *testing.T) {
	release, err := Noop{}.Acquire(context.Background(), "anything")
	require.NoError(t, err)
	release()
}
