package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountdown_FiresAfterWindow(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(20*time.Millisecond, func() {
		fired.Add(1)
	})

	c.Start()
	assert.True(t, c.Running())

	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, c.Running())
}

func TestCountdown_StopPreventsFire(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(20*time.Millisecond, func() {
		fired.Add(1)
	})

	c.Start()
	c.Stop()

	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, c.Running())
}

func TestCountdown_ResetRestartsFullWindow(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(50*time.Millisecond, func() {
		fired.Add(1)
	})

	c.Start()

	// Keep resetting before the window elapses; it must never fire
	for i := 0; i < 4; i++ {
		time.Sleep(25 * time.Millisecond)
		c.Reset()
		assert.Equal(t, int32(0), fired.Load())
	}

	// Left alone, the full window elapses exactly once
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestCountdown_StartWhileRunningFiresOnce(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(20*time.Millisecond, func() {
		fired.Add(1)
	})

	c.Start()
	c.Start()
	c.Start()

	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, int32(1), fired.Load())
}

func TestCountdown_StopWithoutStart(t *testing.T) {
	c := NewCountdown(10*time.Millisecond, func() {})

	// Must not panic
	c.Stop()
	assert.False(t, c.Running())
}
