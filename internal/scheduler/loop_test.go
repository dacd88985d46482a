package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"
)

func startLoop(t *testing.T, clk clock.WithDelayedExecution) (*Loop, func()) {
	t.Helper()

	l := NewLoop(clk, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	return l, func() {
		l.Close()
		cancel()
		<-done
	}
}

func TestLoopRunsWorkInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	l, stop := startLoop(t, clock.RealClock{})
	defer stop()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, l.Do(context.Background(), func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}

	require.NoError(t, l.DoSync(context.Background(), func() error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLoopDoSyncReturnsError(t *testing.T) {
	defer goleak.VerifyNone(t)

	l, stop := startLoop(t, clock.RealClock{})
	defer stop()

	boom := errors.New("boom")
	err := l.DoSync(context.Background(), func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLoopSurvivesPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	l, stop := startLoop(t, clock.RealClock{})
	defer stop()

	err := l.DoSync(context.Background(), func() error { panic("kaboom") })
	require.Error(t, err)

	require.NoError(t, l.DoSync(context.Background(), func() error { return nil }))
}

func TestLoopAfterUsesClock(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := testingclock.NewFakeClock(time.Unix(0, 0))
	l, stop := startLoop(t, fake)
	defer stop()

	fired := make(chan time.Time, 1)
	l.After(20*time.Millisecond, func() { fired <- fake.Now() })

	require.Eventually(t, fake.HasWaiters, time.Second, time.Millisecond)
	assert.Equal(t, 1, l.Pending())

	fake.Step(19 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("fired before its delay")
	case <-time.After(20 * time.Millisecond):
	}

	fake.Step(time.Millisecond)
	select {
	case at := <-fired:
		assert.Equal(t, time.Unix(0, 0).Add(20*time.Millisecond), at)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Zero(t, l.Pending())
}

func TestLoopCloseDisarmsTimers(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := testingclock.NewFakeClock(time.Unix(0, 0))
	l, stop := startLoop(t, fake)

	fired := false
	l.After(time.Second, func() { fired = true })
	require.Equal(t, 1, l.Pending())

	stop()
	assert.Zero(t, l.Pending())

	fake.Step(2 * time.Second)
	l.After(0, func() { fired = true })
	assert.False(t, l.Do(context.Background(), func() { fired = true }))
	assert.ErrorIs(t, l.DoSync(context.Background(), func() error { return nil }), ErrLoopClosed)
	assert.False(t, fired)
}
