package interrupt

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"go.viam.com/datalog/utils"
)

type counter struct {
	n atomic.Int64
}

func (c *counter) HandleInterrupt() {
	c.n.Inc()
}

func TestTicker(t *testing.T) {
	_, err := NewTicker(clock.NewMock(), 0)
	test.That(t, err, test.ShouldNotBeNil)

	clk := clock.NewMock()
	ticker, err := NewTicker(clk, 250*time.Millisecond)
	test.That(t, err, test.ShouldBeNil)

	c := &counter{}
	workers := utils.NewStoppableWorkers(func(ctx context.Context) {
		ticker.Run(ctx, c)
	})
	defer workers.Stop()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(250 * time.Millisecond)
		test.That(tb, c.n.Load(), test.ShouldBeGreaterThanOrEqualTo, 4)
	})

	ticker.SetInterval(time.Hour)
	ticker.SetInterval(time.Minute)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(ticker.interval), test.ShouldEqual, 0)
	})
	time.Sleep(10 * time.Millisecond)
	before := c.n.Load()
	clk.Add(30 * time.Second)
	time.Sleep(10 * time.Millisecond)
	test.That(t, c.n.Load(), test.ShouldEqual, before)
	clk.Add(30 * time.Second)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, c.n.Load(), test.ShouldEqual, before+1)
	})
	test.That(t, ticker.Close(), test.ShouldBeNil)
}

func TestIntervalForRate(t *testing.T) {
	test.That(t, IntervalForRate(4), test.ShouldEqual, 250*time.Millisecond)
	test.That(t, IntervalForRate(12.5), test.ShouldEqual, 80*time.Millisecond)
	test.That(t, IntervalForRate(0), test.ShouldEqual, time.Second)
}

func TestGPIO(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level)}
	src, err := NewGPIOFromPin(pin)
	test.That(t, err, test.ShouldBeNil)

	c := &counter{}
	workers := utils.NewStoppableWorkers(func(ctx context.Context) {
		src.Run(ctx, c)
	})

	pin.EdgesChan <- gpio.High
	pin.EdgesChan <- gpio.High
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, c.n.Load(), test.ShouldEqual, 2)
	})

	workers.Stop()
	test.That(t, src.Close(), test.ShouldBeNil)
}

func TestHandlerFunc(t *testing.T) {
	called := false
	HandlerFunc(func() { called = true }).HandleInterrupt()
	test.That(t, called, test.ShouldBeTrue)
}
