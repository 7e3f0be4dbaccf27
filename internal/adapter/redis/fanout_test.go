package redis

import (
	"context"
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanout_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	require.NoError(t, rdb.Close())
	f := NewFanout(rdb, "test:breaker")

	assert.Equal(t, circuitbreaker.ClosedState, f.BreakerState())

	for range breakerFailureThreshold {
		err := f.Publish(context.Background(), []byte(`{}`))
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}
	assert.Equal(t, circuitbreaker.OpenState, f.BreakerState())

	err := f.Publish(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Contains(t, err.Error(), "failed to publish broadcast")
}
