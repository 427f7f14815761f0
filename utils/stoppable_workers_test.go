package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"
)

func TestStoppableWorkers(t *testing.T) {
	var started atomic.Int32
	sw := NewStoppableWorkers(func(ctx context.Context) {
		started.Add(1)
		<-ctx.Done()
	})
	sw.Add(func(ctx context.Context) {
		started.Add(1)
		<-ctx.Done()
	})

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, started.Load(), test.ShouldEqual, 2)
	})
	sw.Stop()
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)

	// Adding after Stop is a no-op.
	sw.Add(func(ctx context.Context) { started.Add(1) })
	test.That(t, started.Load(), test.ShouldEqual, 2)
}

func TestStoppableWorkersWithParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sw := NewStoppableWorkersWithParent(parent, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()
	<-done
	sw.Stop()
}

func TestStoppableWorkerWithTicker(t *testing.T) {
	mockClock := clock.NewMock()
	var ticks atomic.Int32
	sw := NewStoppableWorkerWithTicker(mockClock, time.Second, func(ctx context.Context) {
		ticks.Add(1)
	})
	defer sw.Stop()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mockClock.Add(time.Second)
		test.That(tb, ticks.Load(), test.ShouldBeGreaterThanOrEqualTo, 3)
	})
}
