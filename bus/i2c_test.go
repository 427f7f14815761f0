package bus

import (
	"context"
	"testing"

	"go.viam.com/test"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestI2CDeviceTransfers(t *testing.T) {
	ctx := context.Background()
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			// single register read: no auto-increment bit
			{Addr: 0x5d, W: []byte{0x0f}, R: []byte{0xb3}},
			// burst read: auto-increment bit set
			{Addr: 0x5d, W: []byte{0x78 | AutoIncrement}, R: []byte{1, 2, 3, 4, 5}},
			{Addr: 0x5d, W: []byte{0x14, 0x40}},
			{Addr: 0x5d, W: []byte{0x10 | AutoIncrement, 0x01, 0x02}},
		},
	}
	b := NewI2CBus("test", playback)
	dev := b.Device(0x5d)

	who, err := ReadByte(ctx, dev, 0x0f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, who, test.ShouldEqual, byte(0xb3))

	data, err := dev.ReadRegisters(ctx, 0x78, 5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{1, 2, 3, 4, 5})

	test.That(t, WriteByte(ctx, dev, 0x14, 0x40), test.ShouldBeNil)
	test.That(t, dev.WriteRegisters(ctx, 0x10, []byte{0x01, 0x02}), test.ShouldBeNil)
	test.That(t, b.Close(), test.ShouldBeNil)
}

func TestPlainDeviceKeepsSubAddress(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x4a, W: []byte{0xfd}, R: []byte{0x00}},
			{Addr: 0x4a, W: []byte{0x00}, R: []byte{0x19, 0x80}},
		},
	}
	dev := NewI2CBus("test", playback).PlainDevice(0x4a)

	id, err := ReadByte(context.Background(), dev, 0xfd)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldEqual, byte(0))

	data, err := dev.ReadRegisters(context.Background(), 0x00, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0x19, 0x80})
	test.That(t, playback.Close(), test.ShouldBeNil)
}

func TestI2CDeviceErrors(t *testing.T) {
	playback := &i2ctest.Playback{DontPanic: true}
	dev := NewI2CBus("test", playback).Device(0x44)

	_, err := dev.ReadRegisters(context.Background(), 0x27, 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, IsBusError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "register 0x27 on device 0x44")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = dev.WriteRegisters(ctx, 0x20, []byte{0})
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestBusesOpensOnce(t *testing.T) {
	opened := 0
	bs := &Buses{
		opener: func(name string) (*I2CBus, error) {
			opened++
			return NewI2CBus(name, &i2ctest.Playback{}), nil
		},
		buses: map[string]*I2CBus{},
	}
	first, err := bs.Get("1")
	test.That(t, err, test.ShouldBeNil)
	second, err := bs.Get("1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first, test.ShouldEqual, second)
	test.That(t, opened, test.ShouldEqual, 1)
	test.That(t, first.Name(), test.ShouldEqual, "1")
	test.That(t, bs.Close(), test.ShouldBeNil)
}
