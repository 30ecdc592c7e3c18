package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingDelay pads rejected login attempts to a minimum elapsed time so
// response timing does not reveal which check turned the attempt away.
type TimingDelay struct {
	base   time.Duration
	jitter time.Duration
}

// NewTimingDelay creates a new TimingDelay
func NewTimingDelay(base, jitter time.Duration) *TimingDelay {
	return &TimingDelay{base: base, jitter: jitter}
}

// WaitFrom sleeps until at least base plus a random jitter has elapsed
// since start. Successful attempts are not delayed.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if success {
		return
	}

	target := td.base + randomDuration(td.jitter)
	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// randomDuration returns a secure random duration in [0, max)
func randomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}

	return time.Duration(binary.BigEndian.Uint64(buf[:]) % uint64(max))
}
