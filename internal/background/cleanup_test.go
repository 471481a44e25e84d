package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartRunsEverySweepImmediately(t *testing.T) {
	cm := NewCleanupManager(testLogger(), time.Hour)

	var first, second atomic.Int64
	cm.Register("login_attempts", ReclaimerFunc(func(ctx context.Context) (int64, error) {
		first.Add(1)
		return 3, nil
	}))
	cm.Register("refresh_tokens", ReclaimerFunc(func(ctx context.Context) (int64, error) {
		second.Add(1)
		return 0, nil
	}))

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return first.Load() == 1 && second.Load() == 1
	}, time.Second, 10*time.Millisecond)

	cm.Stop()
	<-done
}

func TestSweepFailureDoesNotStopOthers(t *testing.T) {
	cm := NewCleanupManager(testLogger(), time.Hour)

	var ran atomic.Bool
	cm.Register("ip_blocks", ReclaimerFunc(func(ctx context.Context) (int64, error) {
		return 0, errors.New("deadlock detected")
	}))
	cm.Register("refresh_tokens", ReclaimerFunc(func(ctx context.Context) (int64, error) {
		ran.Store(true)
		return 1, nil
	}))

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return ran.Load() }, time.Second, 10*time.Millisecond)

	cm.Stop()
	<-done
}

func TestStartHonorsContextCancellation(t *testing.T) {
	cm := NewCleanupManager(testLogger(), time.Hour)
	cm.Register("login_attempts", ReclaimerFunc(func(ctx context.Context) (int64, error) {
		return 0, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop on context cancellation")
	}
}

func TestTickerRunsRepeatedCycles(t *testing.T) {
	cm := NewCleanupManager(testLogger(), 20*time.Millisecond)

	var runs atomic.Int64
	cm.Register("login_attempts", ReclaimerFunc(func(ctx context.Context) (int64, error) {
		runs.Add(1)
		return 0, nil
	}))

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 10*time.Millisecond)

	cm.Stop()
	<-done
}
