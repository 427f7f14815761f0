package inject

import (
	"context"

	"go.viam.com/datalog/acquisition"
)

// Driver is an injected sensor driver.
type Driver struct {
	acquisition.Driver
	DescriptorFunc  func() acquisition.Descriptor
	WatermarkFunc   func() int
	RecordWidthFunc func() int
	RatesFunc       func() []acquisition.RateBand
	ProgramFunc     func(ctx context.Context, params acquisition.Params) error
	SetRateFunc     func(ctx context.Context, band acquisition.RateBand) error
	PowerDownFunc   func(ctx context.Context) error
	FIFOStatusFunc  func(ctx context.Context) (bool, int, error)
	ReadFIFOFunc    func(ctx context.Context, entries int) ([]byte, error)
	DecodeFunc      func(record []byte, out []float32)
}

// Descriptor calls the injected Descriptor or the real version.
func (d *Driver) Descriptor() acquisition.Descriptor {
	if d.DescriptorFunc == nil {
		return d.Driver.Descriptor()
	}
	return d.DescriptorFunc()
}

// Watermark calls the injected Watermark or the real version.
func (d *Driver) Watermark() int {
	if d.WatermarkFunc == nil {
		return d.Driver.Watermark()
	}
	return d.WatermarkFunc()
}

// RecordWidth calls the injected RecordWidth or the real version.
func (d *Driver) RecordWidth() int {
	if d.RecordWidthFunc == nil {
		return d.Driver.RecordWidth()
	}
	return d.RecordWidthFunc()
}

// Rates calls the injected Rates or the real version.
func (d *Driver) Rates() []acquisition.RateBand {
	if d.RatesFunc == nil {
		return d.Driver.Rates()
	}
	return d.RatesFunc()
}

// Program calls the injected Program or the real version.
func (d *Driver) Program(ctx context.Context, params acquisition.Params) error {
	if d.ProgramFunc == nil {
		return d.Driver.Program(ctx, params)
	}
	return d.ProgramFunc(ctx, params)
}

// SetRate calls the injected SetRate or the real version.
func (d *Driver) SetRate(ctx context.Context, band acquisition.RateBand) error {
	if d.SetRateFunc == nil {
		return d.Driver.SetRate(ctx, band)
	}
	return d.SetRateFunc(ctx, band)
}

// PowerDown calls the injected PowerDown or the real version.
func (d *Driver) PowerDown(ctx context.Context) error {
	if d.PowerDownFunc == nil {
		return d.Driver.PowerDown(ctx)
	}
	return d.PowerDownFunc(ctx)
}

// FIFOStatus calls the injected FIFOStatus or the real version.
func (d *Driver) FIFOStatus(ctx context.Context) (bool, int, error) {
	if d.FIFOStatusFunc == nil {
		return d.Driver.FIFOStatus(ctx)
	}
	return d.FIFOStatusFunc(ctx)
}

// ReadFIFO calls the injected ReadFIFO or the real version.
func (d *Driver) ReadFIFO(ctx context.Context, entries int) ([]byte, error) {
	if d.ReadFIFOFunc == nil {
		return d.Driver.ReadFIFO(ctx, entries)
	}
	return d.ReadFIFOFunc(ctx, entries)
}

// Decode calls the injected Decode or the real version.
func (d *Driver) Decode(record []byte, out []float32) {
	if d.DecodeFunc == nil {
		d.Driver.Decode(record, out)
		return
	}
	d.DecodeFunc(record, out)
}
