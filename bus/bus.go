// Package bus defines the register-level transport that sensor drivers talk through, along with
// an I2C implementation backed by periph.io.
package bus

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// AutoIncrement is OR'd into a sub-address on ST sensors to make the device advance the register
// pointer during a multi-byte transfer.
const AutoIncrement byte = 0x80

// Registers is a handle to one device on a bus. Reads and writes are synchronous; any completion
// signalling the transport needs happens inside the call.
type Registers interface {
	// ReadRegisters reads length bytes starting at register. Burst reads of at least
	// watermark × record width must be supported.
	ReadRegisters(ctx context.Context, register byte, length int) ([]byte, error)
	// WriteRegisters writes data starting at register.
	WriteRegisters(ctx context.Context, register byte, data []byte) error
}

// Error is returned when a register transfer fails.
type Error struct {
	Op       string
	Address  uint16
	Register byte
	Length   int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bus %s of %d bytes at register 0x%02x on device 0x%02x: %v",
		e.Op, e.Length, e.Register, e.Address, e.Err)
}

// Unwrap returns the transport error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsBusError returns whether err is, or wraps, a bus Error.
func IsBusError(err error) bool {
	var busErr *Error
	return errors.As(err, &busErr)
}

// ReadByte reads a single register.
func ReadByte(ctx context.Context, regs Registers, register byte) (byte, error) {
	buf, err := regs.ReadRegisters(ctx, register, 1)
	if err != nil {
		return 0, err
	}
	if len(buf) != 1 {
		return 0, &Error{Op: "read", Register: register, Length: 1, Err: errors.New("empty response")}
	}
	return buf[0], nil
}

// WriteByte writes a single register.
func WriteByte(ctx context.Context, regs Registers, register, value byte) error {
	return regs.WriteRegisters(ctx, register, []byte{value})
}

// UpdateBits does a read-modify-write of the bits selected by mask.
func UpdateBits(ctx context.Context, regs Registers, register, mask, value byte) error {
	current, err := ReadByte(ctx, regs, register)
	if err != nil {
		return err
	}
	return WriteByte(ctx, regs, register, (current&^mask)|(value&mask))
}

// SetBit sets or clears the bits in mask.
func SetBit(ctx context.Context, regs Registers, register, mask byte, on bool) error {
	var value byte
	if on {
		value = mask
	}
	return UpdateBits(ctx, regs, register, mask, value)
}

// A Register is a lightweight wrapper around a handle for a particular register.
type Register struct {
	Handle   Registers
	Register byte
}

// Read reads the register.
func (reg Register) Read(ctx context.Context) (byte, error) {
	return ReadByte(ctx, reg.Handle, reg.Register)
}

// Write writes the register.
func (reg Register) Write(ctx context.Context, value byte) error {
	return WriteByte(ctx, reg.Handle, reg.Register, value)
}

// Update does a read-modify-write of the bits selected by mask.
func (reg Register) Update(ctx context.Context, mask, value byte) error {
	return UpdateBits(ctx, reg.Handle, reg.Register, mask, value)
}
