// Package inject provides function-field fakes of the interfaces sensors depend on.
package inject

import (
	"context"

	"go.viam.com/datalog/bus"
)

// Registers is an injected register bus handle.
type Registers struct {
	bus.Registers
	ReadRegistersFunc  func(ctx context.Context, register byte, length int) ([]byte, error)
	WriteRegistersFunc func(ctx context.Context, register byte, data []byte) error
}

// ReadRegisters calls the injected ReadRegisters or the real version.
func (r *Registers) ReadRegisters(ctx context.Context, register byte, length int) ([]byte, error) {
	if r.ReadRegistersFunc == nil {
		return r.Registers.ReadRegisters(ctx, register, length)
	}
	return r.ReadRegistersFunc(ctx, register, length)
}

// WriteRegisters calls the injected WriteRegisters or the real version.
func (r *Registers) WriteRegisters(ctx context.Context, register byte, data []byte) error {
	if r.WriteRegistersFunc == nil {
		return r.Registers.WriteRegisters(ctx, register, data)
	}
	return r.WriteRegistersFunc(ctx, register, data)
}
