package bus_test

import (
	"context"
	"testing"

	"go.viam.com/test"

	"go.viam.com/datalog/bus"
	"go.viam.com/datalog/bus/fakebus"
)

func TestUpdateBits(t *testing.T) {
	ctx := context.Background()
	dev := fakebus.New(0x5f)
	dev.Set(0x20, 0b1000_0011)

	test.That(t, bus.UpdateBits(ctx, dev, 0x20, 0b0000_0011, 0b0000_0001), test.ShouldBeNil)
	test.That(t, dev.Get(0x20), test.ShouldEqual, byte(0b1000_0001))

	test.That(t, bus.SetBit(ctx, dev, 0x20, 0b1000_0000, false), test.ShouldBeNil)
	test.That(t, dev.Get(0x20), test.ShouldEqual, byte(0b0000_0001))

	reg := bus.Register{Handle: dev, Register: 0x21}
	test.That(t, reg.Write(ctx, 0x04), test.ShouldBeNil)
	test.That(t, reg.Update(ctx, 0x84, 0x80), test.ShouldBeNil)
	value, err := reg.Read(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, byte(0x80))
}
