package chartplotterhat_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cph "chartplotterhat"
)

// sleepClock reports each Sleep once its timer is armed on the mock, so the
// test can advance time without racing the sleeper.
type sleepClock struct {
	*clock.Mock
	slept chan time.Duration
}

func (c sleepClock) Sleep(d time.Duration) {
	ch := c.Mock.After(d)
	c.slept <- d
	<-ch
}

func checkDelay(t *testing.T, want time.Duration, wait func(cph.Delay)) {
	t.Helper()
	c := sleepClock{Mock: clock.NewMock(), slept: make(chan time.Duration, 1)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait(cph.NewDelay(c))
	}()

	select {
	case got := <-c.slept:
		require.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatal("delay never slept")
	}

	c.Add(want - time.Microsecond)
	select {
	case <-done:
		t.Fatalf("returned before %v elapsed", want)
	case <-time.After(20 * time.Millisecond):
	}

	c.Add(time.Microsecond)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("still waiting after %v", want)
	}
}

func TestDelayUs(t *testing.T) {
	checkDelay(t, 50*time.Microsecond, func(d cph.Delay) { d.DelayUs(50) })
}

func TestDelayMs(t *testing.T) {
	checkDelay(t, 100*time.Millisecond, func(d cph.Delay) { d.DelayMs(100) })
}

func TestDelayWallClock(t *testing.T) {
	var d cph.Delay

	start := time.Now()
	d.DelayUs(50)
	d.DelayMs(2)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 2*time.Millisecond+50*time.Microsecond)
	assert.Less(t, elapsed, time.Second)
}
