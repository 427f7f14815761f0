package utils

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	goutils "go.viam.com/utils"
)

// StoppableWorkers is a collection of goroutines that can be stopped at a later time. Sensor
// workers and interrupt sources are all started through one of these so that shutting a manager
// down waits for every goroutine it spawned.
type StoppableWorkers interface {
	Add(func(context.Context))
	Stop()
	Context() context.Context
}

// stoppableWorkersImpl is the implementation of StoppableWorkers. Everything goes through the
// interface so the embedded WaitGroup is never copied.
type stoppableWorkersImpl struct {
	mu         sync.Mutex
	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup
}

// NewStoppableWorkers runs the functions in separate goroutines. They can be stopped later.
func NewStoppableWorkers(funcs ...func(context.Context)) StoppableWorkers {
	return NewStoppableWorkersWithParent(context.Background(), funcs...)
}

// NewStoppableWorkersWithParent is like NewStoppableWorkers, but the context handed to the workers
// is also cancelled when the parent is.
func NewStoppableWorkersWithParent(parent context.Context, funcs ...func(context.Context)) StoppableWorkers {
	cancelCtx, cancelFunc := context.WithCancel(parent)
	sw := &stoppableWorkersImpl{cancelCtx: cancelCtx, cancelFunc: cancelFunc}
	for _, f := range funcs {
		sw.Add(f)
	}
	return sw
}

// NewStoppableWorkerWithTicker creates a StoppableWorkers that calls f once per tick of the given
// clock. The first call happens after one interval.
func NewStoppableWorkerWithTicker(clk clock.Clock, interval time.Duration, f func(context.Context)) StoppableWorkers {
	return NewStoppableWorkers(func(ctx context.Context) {
		ticker := clk.Ticker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f(ctx)
			}
		}
	})
}

// Add starts up an additional goroutine running f. If you call this after calling Stop(), it
// will return immediately without starting any new goroutines.
func (sw *stoppableWorkersImpl) Add(f func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cancelCtx.Err() != nil {
		return
	}

	sw.workers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer sw.workers.Done()
		f(sw.cancelCtx)
	})
}

// Stop shuts down all the goroutines we started up.
func (sw *stoppableWorkersImpl) Stop() {
	sw.mu.Lock()
	sw.cancelFunc()
	sw.mu.Unlock()

	sw.workers.Wait()
}

// Context gets the context the workers are checking on.
func (sw *stoppableWorkersImpl) Context() context.Context {
	return sw.cancelCtx
}
