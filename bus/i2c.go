package bus

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	hostInitOnce sync.Once
	hostInitErr  error
)

// InitHost loads the periph.io host drivers once per process. Anything that looks up buses or
// pins by name needs it first.
func InitHost() error {
	hostInitOnce.Do(func() {
		_, hostInitErr = host.Init()
	})
	return hostInitErr
}

// I2CBus is an opened I2C bus that devices can be attached to. Transactions from different
// devices on the same bus are serialized.
type I2CBus struct {
	mu     sync.Mutex
	name   string
	closer i2c.BusCloser
}

// OpenI2C opens the named I2C bus (e.g. "1" or "/dev/i2c-1"). An empty name opens the first bus.
func OpenI2C(name string) (*I2CBus, error) {
	if err := InitHost(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host drivers")
	}
	closer, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open i2c bus %q", name)
	}
	return &I2CBus{name: name, closer: closer}, nil
}

// NewI2CBus wraps an already opened periph.io bus.
func NewI2CBus(name string, closer i2c.BusCloser) *I2CBus {
	return &I2CBus{name: name, closer: closer}
}

// Device returns the register handle of the device at addr. Multi-byte transfers set the
// AutoIncrement bit on the sub-address.
func (b *I2CBus) Device(addr uint16) *I2CDevice {
	return &I2CDevice{bus: b, dev: &i2c.Dev{Bus: b.closer, Addr: addr}, autoIncrement: true}
}

// PlainDevice is like Device for chips that use the full 8 bit sub-address and advance the
// register pointer on their own.
func (b *I2CBus) PlainDevice(addr uint16) *I2CDevice {
	return &I2CDevice{bus: b, dev: &i2c.Dev{Bus: b.closer, Addr: addr}}
}

// Name returns the bus name it was opened with.
func (b *I2CBus) Name() string {
	return b.name
}

// Close closes the bus.
func (b *I2CBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closer.Close()
}

// I2CDevice implements Registers for one I2C address.
type I2CDevice struct {
	bus           *I2CBus
	dev           *i2c.Dev
	autoIncrement bool
}

// ReadRegisters implements Registers.
func (d *I2CDevice) ReadRegisters(ctx context.Context, register byte, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := register
	if d.autoIncrement && length > 1 {
		sub |= AutoIncrement
	}
	buf := make([]byte, length)

	d.bus.mu.Lock()
	err := d.dev.Tx([]byte{sub}, buf)
	d.bus.mu.Unlock()
	if err != nil {
		return nil, &Error{Op: "read", Address: d.dev.Addr, Register: register, Length: length, Err: err}
	}
	return buf, nil
}

// WriteRegisters implements Registers.
func (d *I2CDevice) WriteRegisters(ctx context.Context, register byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sub := register
	if d.autoIncrement && len(data) > 1 {
		sub |= AutoIncrement
	}
	tx := make([]byte, 0, len(data)+1)
	tx = append(tx, sub)
	tx = append(tx, data...)

	d.bus.mu.Lock()
	err := d.dev.Tx(tx, nil)
	d.bus.mu.Unlock()
	if err != nil {
		return &Error{Op: "write", Address: d.dev.Addr, Register: register, Length: len(data), Err: err}
	}
	return nil
}

// Buses is a set of opened I2C buses keyed by name.
type Buses struct {
	mu     sync.Mutex
	opener func(name string) (*I2CBus, error)
	buses  map[string]*I2CBus
}

// NewBuses returns an empty set that opens buses with OpenI2C.
func NewBuses() *Buses {
	return &Buses{opener: OpenI2C, buses: map[string]*I2CBus{}}
}

// Get returns the named bus, opening it on first use.
func (bs *Buses) Get(name string) (*I2CBus, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if b, ok := bs.buses[name]; ok {
		return b, nil
	}
	b, err := bs.opener(name)
	if err != nil {
		return nil, err
	}
	bs.buses[name] = b
	return b, nil
}

// Close closes every opened bus.
func (bs *Buses) Close() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	var err error
	for name, b := range bs.buses {
		err = multierr.Combine(err, errors.Wrapf(b.Close(), "closing i2c bus %q", name))
	}
	bs.buses = map[string]*I2CBus{}
	return err
}
