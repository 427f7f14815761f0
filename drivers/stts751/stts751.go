// Package stts751 implements the ST STTS751 digital temperature sensor. The part has no
// data-ready line, so it is driven by a timer at the programmed conversion rate.
package stts751

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/datalog/acquisition"
	"go.viam.com/datalog/bus"
	"go.viam.com/datalog/convert"
	"go.viam.com/datalog/drivers"
	"go.viam.com/datalog/logging"
	"go.viam.com/datalog/utils"
)

const (
	// ModelName is the name the model is registered under.
	ModelName = "stts751"
	// DefaultAddress is the address with a 7.5 kΩ pull-up on Addr/Therm.
	DefaultAddress = 0x4a

	// Watermark is one sample per timer tick.
	Watermark = 1
	// RecordWidth is the temperature high byte followed by the low byte.
	RecordWidth = 2

	manufacturerID = 0x53

	countsPerC = 256
)

// register addresses.
const (
	regTempHigh     byte = 0x00
	regStatus       byte = 0x01
	regTempLow      byte = 0x02
	regConfig       byte = 0x03
	regConvRate     byte = 0x04
	regProductID    byte = 0xfd
	regManufacturer byte = 0xfe
)

// register bits.
const (
	configStop     byte = 1 << 6
	configResMask  byte = 0x0c
	statusBusy     byte = 1 << 7
	convRateMask   byte = 0x0f
	resolution12   byte = 0x0c
	resolution11   byte = 0x04
	resolution10   byte = 0x00
	resolution9    byte = 0x08
	defaultResBits      = 12
)

var rates = []acquisition.RateBand{
	{Hz: 1, Ceiling: 2, Code: 0x04},
	{Hz: 2, Ceiling: 3, Code: 0x05},
	{Hz: 4, Ceiling: 5, Code: 0x06},
}

var resolutions = map[int]byte{
	9:  resolution9,
	10: resolution10,
	11: resolution11,
	12: resolution12,
}

func init() {
	drivers.Register(drivers.Model{
		Name:                  ModelName,
		DefaultAddress:        DefaultAddress,
		Constructor:           New,
		AttributeMapConverter: drivers.ConvertAttributes[*Attributes](),
		Simulator:             NewSimulator,
	})
}

// Attributes are the model specific settings of an STTS751.
type Attributes struct {
	// ResolutionBits is the conversion resolution, 9 to 12 bits. Defaults to 12.
	ResolutionBits int `json:"resolution_bits,omitempty"`
}

// Validate checks the attributes.
func (a *Attributes) Validate(path string) error {
	if a.ResolutionBits == 0 {
		return nil
	}
	if _, ok := resolutions[a.ResolutionBits]; !ok {
		return errors.Errorf("%s: resolution_bits must be between 9 and 12, got %d", path, a.ResolutionBits)
	}
	return nil
}

// Driver drives one STTS751.
type Driver struct {
	regs       bus.Registers
	resolution byte
	logger     logging.Logger
}

var _ acquisition.Driver = (*Driver)(nil)

// New returns a driver for the STTS751 reachable through regs. attrs may be nil.
func New(ctx context.Context, regs bus.Registers, attrs interface{}, logger logging.Logger) (acquisition.Driver, error) {
	d := &Driver{regs: regs, resolution: resolutions[defaultResBits], logger: logger}
	switch a := attrs.(type) {
	case nil:
	case *Attributes:
		if a != nil {
			if err := a.Validate(ModelName); err != nil {
				return nil, err
			}
			if a.ResolutionBits != 0 {
				d.resolution = resolutions[a.ResolutionBits]
			}
		}
	default:
		return nil, utils.NewUnexpectedTypeError[*Attributes](attrs)
	}
	return d, nil
}

// Descriptor implements acquisition.Driver.
func (d *Driver) Descriptor() acquisition.Descriptor {
	return acquisition.Descriptor{
		Name:       "STTS751",
		SharedRate: true,
		Channels: []acquisition.ChannelDescriptor{
			{
				ID:                  0,
				Type:                acquisition.TypeTemperature,
				Dimensions:          1,
				Labels:              []string{"tem"},
				Unit:                "Celsius",
				DataType:            acquisition.DataTypeFloat,
				Rates:               []float64{1, 2, 4},
				FullScales:          []float64{100},
				SamplesPerTimestamp: [2]uint16{0, 1000},
				Defaults: acquisition.ChannelStatus{
					Rate: 4, FullScale: 100, Sensitivity: 1,
					SamplesPerTimestamp: 4, WriteBufferSize: 512, PacketSize: 16, ComChannel: -1,
				},
			},
		},
	}
}

// Watermark implements acquisition.Driver.
func (d *Driver) Watermark() int { return Watermark }

// RecordWidth implements acquisition.Driver.
func (d *Driver) RecordWidth() int { return RecordWidth }

// Rates implements acquisition.Driver.
func (d *Driver) Rates() []acquisition.RateBand { return rates }

// Program checks the manufacturer id and puts the device in standby with the configured
// resolution.
func (d *Driver) Program(ctx context.Context, params acquisition.Params) error {
	id, err := bus.ReadByte(ctx, d.regs, regManufacturer)
	if err != nil {
		return err
	}
	if id != manufacturerID {
		return errors.Errorf("unexpected manufacturer id 0x%02x, expected 0x%02x", id, manufacturerID)
	}
	product, err := bus.ReadByte(ctx, d.regs, regProductID)
	if err != nil {
		return err
	}
	if err := d.PowerDown(ctx); err != nil {
		return err
	}
	if err := bus.UpdateBits(ctx, d.regs, regConfig, configResMask, d.resolution); err != nil {
		return err
	}
	d.logger.Debugw("programmed", "product_id", product, "active", params.ActiveFlags())
	return nil
}

// SetRate sets the conversion rate and starts continuous conversions.
func (d *Driver) SetRate(ctx context.Context, band acquisition.RateBand) error {
	if err := bus.UpdateBits(ctx, d.regs, regConvRate, convRateMask, band.Code); err != nil {
		return err
	}
	return bus.SetBit(ctx, d.regs, regConfig, configStop, false)
}

// PowerDown puts the device in standby.
func (d *Driver) PowerDown(ctx context.Context) error {
	return bus.SetBit(ctx, d.regs, regConfig, configStop, true)
}

// FIFOStatus reports one entry whenever no conversion is in progress.
func (d *Driver) FIFOStatus(ctx context.Context) (bool, int, error) {
	status, err := bus.ReadByte(ctx, d.regs, regStatus)
	if err != nil {
		return false, 0, err
	}
	if status&statusBusy != 0 {
		return false, 0, nil
	}
	return true, 1, nil
}

// ReadFIFO reads the temperature high byte first, which latches the low byte until it is read.
func (d *Driver) ReadFIFO(ctx context.Context, entries int) ([]byte, error) {
	if entries != 1 {
		return nil, errors.Errorf("stts751 holds a single sample, asked for %d", entries)
	}
	high, err := bus.ReadByte(ctx, d.regs, regTempHigh)
	if err != nil {
		return nil, err
	}
	low, err := bus.ReadByte(ctx, d.regs, regTempLow)
	if err != nil {
		return nil, err
	}
	return []byte{high, low}, nil
}

// Decode converts the two's complement 8.8 fixed point temperature to °C.
func (d *Driver) Decode(record []byte, out []float32) {
	raw := int16(uint16(record[0])<<8 | uint16(record[1]))
	out[0] = convert.Scale(float64(raw), countsPerC)
}
