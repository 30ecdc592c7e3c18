package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mwhitfield/vigil/internal/auth"
)

func TestTimingDelay_WaitFrom_PadsFailures(t *testing.T) {
	timing := auth.NewTimingDelay(100*time.Millisecond, 50*time.Millisecond)
	start := time.Now()

	timing.WaitFrom(start, false)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 250*time.Millisecond)
}

func TestTimingDelay_WaitFrom_SuccessNotDelayed(t *testing.T) {
	timing := auth.NewTimingDelay(100*time.Millisecond, 50*time.Millisecond)
	start := time.Now()

	timing.WaitFrom(start, true)

	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestTimingDelay_WaitFrom_CountsWorkAlreadyDone(t *testing.T) {
	// Zero jitter for a predictable target.
	timing := auth.NewTimingDelay(100*time.Millisecond, 0)
	start := time.Now()

	time.Sleep(50 * time.Millisecond)
	timing.WaitFrom(start, false)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 140*time.Millisecond, "the pad tops up to the target, it does not stack on it")
}

func TestTimingDelay_WaitFrom_NoWaitPastTarget(t *testing.T) {
	timing := auth.NewTimingDelay(50*time.Millisecond, 0)
	start := time.Now().Add(-200 * time.Millisecond)

	before := time.Now()
	timing.WaitFrom(start, false)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}
