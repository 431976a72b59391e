package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUploadThrottle_Paces(t *testing.T) {
	th := NewUploadThrottle(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require := assert.New(t)
	require.NoError(th.Wait(ctx)) // first slot is free (burst 1)
	require.NoError(th.Wait(ctx)) // second slot must wait ~20ms
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}

func TestUploadThrottle_ZeroIntervalNeverBlocks(t *testing.T) {
	th := NewUploadThrottle(0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assert.NoError(t, th.Wait(ctx))
	}
}
