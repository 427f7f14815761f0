// Package fakebus implements an in-memory register file that satisfies bus.Registers. It backs
// driver tests and the simulated sensors used by `datalog run --fake`.
package fakebus

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/datalog/bus"
)

// Write records a single WriteRegisters call.
type Write struct {
	Register byte
	Data     []byte
}

// Device is a fake device with a 256 byte register file. Multi-byte reads and writes walk the
// register file sequentially unless a hook is installed for the starting register.
type Device struct {
	mu         sync.Mutex
	addr       uint16
	regs       [256]byte
	readHooks  map[byte]func(length int) []byte
	writeHooks map[byte]func(data []byte)
	failures   map[byte]error
	writes     []Write
	reads      map[byte]int
}

// New returns a zeroed fake device.
func New(addr uint16) *Device {
	return &Device{
		addr:       addr,
		readHooks:  map[byte]func(int) []byte{},
		writeHooks: map[byte]func([]byte){},
		failures:   map[byte]error{},
		reads:      map[byte]int{},
	}
}

// Set stores a register value.
func (d *Device) Set(register, value byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs[register] = value
}

// Get returns a register value.
func (d *Device) Get(register byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[register]
}

// OnRead installs a hook that produces the data for reads starting at register. The hook is
// called with the device lock held and must not call back into the device.
func (d *Device) OnRead(register byte, hook func(length int) []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readHooks[register] = hook
}

// OnWrite installs a hook called after a write starting at register has been stored. Like read
// hooks, it runs with the device lock held.
func (d *Device) OnWrite(register byte, hook func(data []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeHooks[register] = hook
}

// FailOn makes every transfer starting at register return err. A nil err clears the failure.
func (d *Device) FailOn(register byte, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, register)
		return
	}
	d.failures[register] = err
}

// Writes returns a copy of every write performed so far.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Write, len(d.writes))
	copy(out, d.writes)
	return out
}

// WritesTo returns the data of every write that started at register, in order.
func (d *Device) WritesTo(register byte) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out [][]byte
	for _, w := range d.writes {
		if w.Register == register {
			out = append(out, w.Data)
		}
	}
	return out
}

// ResetLog forgets recorded writes and read counts.
func (d *Device) ResetLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = nil
	d.reads = map[byte]int{}
}

// ReadCount returns how many reads started at register.
func (d *Device) ReadCount(register byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads[register]
}

// ReadRegisters implements bus.Registers.
func (d *Device) ReadRegisters(ctx context.Context, register byte, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failures[register]; ok {
		return nil, &bus.Error{Op: "read", Address: d.addr, Register: register, Length: length, Err: err}
	}
	if length < 0 || int(register)+length > len(d.regs) && d.readHooks[register] == nil {
		return nil, &bus.Error{
			Op: "read", Address: d.addr, Register: register, Length: length,
			Err: errors.New("read past end of register file"),
		}
	}
	d.reads[register]++

	if hook, ok := d.readHooks[register]; ok {
		return hook(length), nil
	}
	out := make([]byte, length)
	copy(out, d.regs[register:int(register)+length])
	return out, nil
}

// WriteRegisters implements bus.Registers.
func (d *Device) WriteRegisters(ctx context.Context, register byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failures[register]; ok {
		return &bus.Error{Op: "write", Address: d.addr, Register: register, Length: len(data), Err: err}
	}
	if int(register)+len(data) > len(d.regs) {
		return &bus.Error{
			Op: "write", Address: d.addr, Register: register, Length: len(data),
			Err: errors.New("write past end of register file"),
		}
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	d.writes = append(d.writes, Write{Register: register, Data: stored})
	copy(d.regs[register:], data)

	if hook, ok := d.writeHooks[register]; ok {
		hook(stored)
	}
	return nil
}

// SetLocked stores a register value from inside a hook, where the device lock is already held.
func (d *Device) SetLocked(register, value byte) {
	d.regs[register] = value
}

// GetLocked reads a register value from inside a hook.
func (d *Device) GetLocked(register byte) byte {
	return d.regs[register]
}
