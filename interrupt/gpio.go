package interrupt

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"go.viam.com/datalog/bus"
)

// edgePollTimeout bounds each wait for an edge so cancellation is noticed.
const edgePollTimeout = 100 * time.Millisecond

// GPIO is a Source on a periph.io input pin, reporting rising edges.
type GPIO struct {
	pin gpio.PinIn
}

// NewGPIO looks the pin up by name (e.g. "GPIO17") and configures it for rising edges.
func NewGPIO(name string) (*GPIO, error) {
	if err := bus.InitHost(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host drivers")
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("no gpio pin named %q", name)
	}
	return NewGPIOFromPin(pin)
}

// NewGPIOFromPin uses an already resolved pin.
func NewGPIOFromPin(pin gpio.PinIn) (*GPIO, error) {
	if err := pin.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		return nil, errors.Wrapf(err, "enabling edge detection on %s", pin)
	}
	return &GPIO{pin: pin}, nil
}

// Run implements Source.
func (g *GPIO) Run(ctx context.Context, h Handler) {
	for ctx.Err() == nil {
		if g.pin.WaitForEdge(edgePollTimeout) {
			h.HandleInterrupt()
		}
	}
}

// Close stops edge detection.
func (g *GPIO) Close() error {
	return g.pin.Halt()
}
