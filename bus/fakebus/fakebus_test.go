package fakebus

import (
	"context"
	"errors"
	"testing"

	"go.viam.com/test"

	"go.viam.com/datalog/bus"
)

func TestRegisterFile(t *testing.T) {
	ctx := context.Background()
	dev := New(0x5d)

	test.That(t, dev.WriteRegisters(ctx, 0x10, []byte{1, 2, 3}), test.ShouldBeNil)
	test.That(t, dev.Get(0x11), test.ShouldEqual, byte(2))

	got, err := dev.ReadRegisters(ctx, 0x10, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []byte{1, 2, 3})
	test.That(t, dev.ReadCount(0x10), test.ShouldEqual, 1)

	test.That(t, dev.WritesTo(0x10), test.ShouldResemble, [][]byte{{1, 2, 3}})

	_, err = dev.ReadRegisters(ctx, 0xff, 4)
	test.That(t, bus.IsBusError(err), test.ShouldBeTrue)
}

func TestHooksAndFailures(t *testing.T) {
	ctx := context.Background()
	dev := New(0x5d)

	dev.OnRead(0x78, func(length int) []byte {
		out := make([]byte, length)
		for i := range out {
			out[i] = byte(i)
		}
		return out
	})
	got, err := dev.ReadRegisters(ctx, 0x78, 5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []byte{0, 1, 2, 3, 4})

	var seen []byte
	dev.OnWrite(0x11, func(data []byte) {
		seen = data
		dev.SetLocked(0x11, data[0]&^0x04)
	})
	test.That(t, bus.WriteByte(ctx, dev, 0x11, 0x14), test.ShouldBeNil)
	test.That(t, seen, test.ShouldResemble, []byte{0x14})
	test.That(t, dev.Get(0x11), test.ShouldEqual, byte(0x10))

	boom := errors.New("nack")
	dev.FailOn(0x27, boom)
	_, err = bus.ReadByte(ctx, dev, 0x27)
	test.That(t, bus.IsBusError(err), test.ShouldBeTrue)
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)

	dev.FailOn(0x27, nil)
	_, err = bus.ReadByte(ctx, dev, 0x27)
	test.That(t, err, test.ShouldBeNil)

	dev.ResetLog()
	test.That(t, dev.Writes(), test.ShouldBeEmpty)
}
