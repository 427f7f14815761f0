package stts751

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/datalog/acquisition"
	"go.viam.com/datalog/bus/fakebus"
	"go.viam.com/datalog/drivers"
	"go.viam.com/datalog/logging"
)

func TestProgramAndRate(t *testing.T) {
	ctx := context.Background()
	dev := NewSimulator(DefaultAddress, clock.NewMock())
	drv, err := New(ctx, dev, &Attributes{ResolutionBits: 11}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, drv.Program(ctx, acquisition.Params{}), test.ShouldBeNil)
	test.That(t, dev.Get(regConfig), test.ShouldEqual, configStop|resolution11)

	band := acquisition.QuantizeRate(drv.Rates(), 2.5)
	test.That(t, band.Hz, test.ShouldEqual, 2.0)
	test.That(t, drv.SetRate(ctx, band), test.ShouldBeNil)
	test.That(t, dev.Get(regConvRate), test.ShouldEqual, byte(0x05))
	test.That(t, dev.Get(regConfig)&configStop, test.ShouldEqual, byte(0))

	test.That(t, drv.PowerDown(ctx), test.ShouldBeNil)
	test.That(t, dev.Get(regConfig)&configStop, test.ShouldEqual, configStop)

	test.That(t, acquisition.QuantizeRate(drv.Rates(), 0.5).Hz, test.ShouldEqual, 1.0)
	test.That(t, acquisition.QuantizeRate(drv.Rates(), 30).Hz, test.ShouldEqual, 4.0)
}

func TestAttributes(t *testing.T) {
	_, err := New(context.Background(), nil, &Attributes{ResolutionBits: 13}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "resolution_bits")

	m, ok := drivers.Lookup(ModelName)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.Interrupt, test.ShouldBeFalse)
	drv, err := m.Build(context.Background(), nil, map[string]interface{}{"resolution_bits": 9}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, drv.(*Driver).resolution, test.ShouldEqual, resolution9)
}

func TestWrongManufacturer(t *testing.T) {
	dev := fakebus.New(DefaultAddress)
	drv, err := New(context.Background(), dev, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	err = drv.Program(context.Background(), acquisition.Params{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "manufacturer id 0x00")
}

func TestReadAndDecode(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	dev := NewSimulator(DefaultAddress, clk)
	drv, err := New(ctx, dev, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, drv.Program(ctx, acquisition.Params{}), test.ShouldBeNil)
	test.That(t, drv.SetRate(ctx, acquisition.QuantizeRate(rates, 4)), test.ShouldBeNil)

	clk.Add(15 * time.Second)
	reached, level, err := drv.FIFOStatus(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reached, test.ShouldBeTrue)
	test.That(t, level, test.ShouldEqual, 1)

	raw, err := drv.ReadFIFO(ctx, 1)
	test.That(t, err, test.ShouldBeNil)
	out := make([]float32, 1)
	drv.Decode(raw, out)
	test.That(t, out[0], test.ShouldAlmostEqual, 27, 0.07)

	dev.Set(regStatus, statusBusy)
	reached, _, err = drv.FIFOStatus(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reached, test.ShouldBeFalse)

	_, err = drv.ReadFIFO(ctx, 4)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeNegative(t *testing.T) {
	drv := &Driver{}
	out := make([]float32, 1)
	drv.Decode([]byte{0xf6, 0x40}, out)
	test.That(t, out[0], test.ShouldEqual, float32(-9.75))
	drv.Decode([]byte{0x19, 0x80}, out)
	test.That(t, out[0], test.ShouldEqual, float32(25.5))
}
