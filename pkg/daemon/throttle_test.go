package daemon

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleFoldsBursts(t *testing.T) {
	m := NewMainloop()
	runLoop(t, m)

	var runs atomic.Int32
	th := NewThrottle(m, 100*time.Millisecond, func() { runs.Add(1) })

	for i := 0; i < 5; i++ {
		th.Trigger()
	}
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	th.Trigger()
	th.Trigger()
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())
}
