// Package lps22hh implements the ST LPS22HH barometer: pressure and temperature queued in a
// 128 entry FIFO with a watermark interrupt.
package lps22hh

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
	ModelName = "lps22hh"
	// DefaultAddress is the I2C address with SA0 pulled high.
	DefaultAddress = 0x5d

	// Watermark is the number of FIFO entries drained per interrupt.
	Watermark = 64
	// RecordWidth is 3 bytes of pressure followed by 2 bytes of temperature.
	RecordWidth = 5

	whoAmIValue = 0xb3

	pressureCountsPerHPa  = 4096
	temperatureCountsPerC = 100

	resetPolls = 10
)

// register addresses.
const (
	regIfCtrl      byte = 0x0e
	regWhoAmI      byte = 0x0f
	regCtrl1       byte = 0x10
	regCtrl2       byte = 0x11
	regCtrl3       byte = 0x12
	regFIFOCtrl    byte = 0x13
	regFIFOWtm     byte = 0x14
	regFIFOStatus1 byte = 0x25
	regFIFOStatus2 byte = 0x26
	regFIFOData    byte = 0x78
)

// register bits.
const (
	ifCtrlI3CDisable byte = 1 << 1

	ctrl1ODRMask  byte = 0x70
	ctrl1ODRShift      = 4
	ctrl1EnLPFP   byte = 1 << 3
	ctrl1LPFPCfg  byte = 1 << 2
	ctrl1BDU      byte = 1 << 1

	ctrl2Boot     byte = 1 << 7
	ctrl2IfAddInc byte = 1 << 4
	ctrl2SWReset  byte = 1 << 2

	ctrl3IntFWtm byte = 1 << 4

	fifoModeMask   byte = 0x07
	fifoModeBypass byte = 0x00
	fifoModeStream byte = 0x02

	fifoWtmMask byte = 0x7f

	status2WtmIA byte = 1 << 7
)

// odrPowerDown is the output data rate code that stops conversions.
const odrPowerDown byte = 0

// rates are the supported output data rates. A request selects the first band whose ceiling is
// above it.
var rates = []acquisition.RateBand{
	{Hz: 1, Ceiling: 2, Code: 1},
	{Hz: 10, Ceiling: 11, Code: 2},
	{Hz: 25, Ceiling: 26, Code: 3},
	{Hz: 50, Ceiling: 51, Code: 4},
	{Hz: 75, Ceiling: 76, Code: 5},
	{Hz: 100, Ceiling: 101, Code: 6},
	{Hz: 200, Ceiling: 201, Code: 7},
}

func init() {
	drivers.Register(drivers.Model{
		Name:                  ModelName,
		DefaultAddress:        DefaultAddress,
		Interrupt:             true,
		Constructor:           New,
		AttributeMapConverter: drivers.ConvertAttributes[*Attributes](),
		Simulator:             NewSimulator,
	})
}

// LowPassFilter values.
const (
	LowPassODRDiv2 = "odr/2"
	LowPassODRDiv9 = "odr/9"
	LowPassOff     = "off"
)

// Attributes are the model specific settings of an LPS22HH.
type Attributes struct {
	// LowPassFilter selects the pressure low-pass filter bandwidth. Defaults to odr/2.
	LowPassFilter     string `json:"low_pass_filter,omitempty"`
	SkipIdentityCheck bool   `json:"skip_identity_check,omitempty"`
}

// Validate checks the attributes.
func (a *Attributes) Validate(path string) error {
	switch a.LowPassFilter {
	case "", LowPassODRDiv2, LowPassODRDiv9, LowPassOff:
		return nil
	default:
		return errors.Errorf("%s: unknown low_pass_filter %q, expected one of %q, %q or %q",
			path, a.LowPassFilter, LowPassODRDiv2, LowPassODRDiv9, LowPassOff)
	}
}

// Driver drives one LPS22HH.
type Driver struct {
	regs   bus.Registers
	attrs  Attributes
	logger logging.Logger
}

var _ acquisition.Driver = (*Driver)(nil)

// New returns a driver for the LPS22HH reachable through regs. attrs may be nil.
func New(ctx context.Context, regs bus.Registers, attrs interface{}, logger logging.Logger) (acquisition.Driver, error) {
	d := &Driver{regs: regs, logger: logger}
	switch a := attrs.(type) {
	case nil:
	case *Attributes:
		if a != nil {
			if err := a.Validate(ModelName); err != nil {
				return nil, err
			}
			d.attrs = *a
		}
	default:
		return nil, utils.NewUnexpectedTypeError[*Attributes](attrs)
	}
	return d, nil
}

// Descriptor implements acquisition.Driver.
func (d *Driver) Descriptor() acquisition.Descriptor {
	odrs := []float64{1, 10, 25, 50, 75, 100, 200}
	return acquisition.Descriptor{
		Name:       "LPS22HH",
		SharedRate: true,
		Channels: []acquisition.ChannelDescriptor{
			{
				ID:                  0,
				Type:                acquisition.TypePressure,
				Dimensions:          1,
				Labels:              []string{"prs"},
				Unit:                "hPa",
				DataType:            acquisition.DataTypeFloat,
				Rates:               odrs,
				FullScales:          []float64{1260},
				SamplesPerTimestamp: [2]uint16{0, 1000},
				Defaults: acquisition.ChannelStatus{
					Rate: 200, FullScale: 1260, Sensitivity: 1,
					SamplesPerTimestamp: 200, WriteBufferSize: 16000, PacketSize: 1600, ComChannel: -1,
				},
			},
			{
				ID:                  1,
				Type:                acquisition.TypeTemperature,
				Dimensions:          1,
				Labels:              []string{"tem"},
				Unit:                "Celsius",
				DataType:            acquisition.DataTypeFloat,
				Rates:               odrs,
				FullScales:          []float64{85},
				SamplesPerTimestamp: [2]uint16{0, 1000},
				Defaults: acquisition.ChannelStatus{
					Rate: 200, FullScale: 85, Sensitivity: 1,
					SamplesPerTimestamp: 200, WriteBufferSize: 16000, PacketSize: 1600, ComChannel: -1,
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

// Program resets the device and sets it up to stream into the FIFO with the watermark routed to
// INT_DRDY. Conversions stay powered down until SetRate.
func (d *Driver) Program(ctx context.Context, params acquisition.Params) error {
	if err := d.reset(ctx); err != nil {
		return err
	}
	if err := bus.SetBit(ctx, d.regs, regIfCtrl, ifCtrlI3CDisable, true); err != nil {
		return err
	}
	if !d.attrs.SkipIdentityCheck {
		who, err := bus.ReadByte(ctx, d.regs, regWhoAmI)
		if err != nil {
			return err
		}
		if who != whoAmIValue {
			return errors.Errorf("unexpected WHO_AM_I 0x%02x, expected 0x%02x", who, whoAmIValue)
		}
	}
	if err := bus.SetBit(ctx, d.regs, regCtrl2, ctrl2IfAddInc, true); err != nil {
		return err
	}
	if err := bus.SetBit(ctx, d.regs, regCtrl1, ctrl1BDU, true); err != nil {
		return err
	}
	if err := bus.UpdateBits(ctx, d.regs, regFIFOCtrl, fifoModeMask, fifoModeBypass); err != nil {
		return err
	}
	if err := d.PowerDown(ctx); err != nil {
		return err
	}
	if err := bus.UpdateBits(ctx, d.regs, regCtrl1, ctrl1EnLPFP|ctrl1LPFPCfg, d.lowPassBits()); err != nil {
		return err
	}
	if err := bus.UpdateBits(ctx, d.regs, regFIFOCtrl, fifoModeMask, fifoModeStream); err != nil {
		return err
	}
	if err := bus.WriteByte(ctx, d.regs, regFIFOWtm, Watermark&fifoWtmMask); err != nil {
		return err
	}
	if err := bus.SetBit(ctx, d.regs, regCtrl3, ctrl3IntFWtm, true); err != nil {
		return err
	}
	d.logger.Debugw("programmed", "active", params.ActiveFlags(), "low_pass_filter", d.attrs.LowPassFilter)
	return nil
}

func (d *Driver) lowPassBits() byte {
	switch d.attrs.LowPassFilter {
	case LowPassOff:
		return 0
	case LowPassODRDiv9:
		return ctrl1EnLPFP | ctrl1LPFPCfg
	default:
		return ctrl1EnLPFP
	}
}

// reset issues a software reset and waits for the device to clear the reset bit.
func (d *Driver) reset(ctx context.Context) error {
	if err := bus.SetBit(ctx, d.regs, regCtrl2, ctrl2SWReset, true); err != nil {
		return err
	}
	for i := 0; i < resetPolls; i++ {
		ctrl2, err := bus.ReadByte(ctx, d.regs, regCtrl2)
		if err != nil {
			return err
		}
		if ctrl2&(ctrl2SWReset|ctrl2Boot) == 0 {
			return nil
		}
	}
	return errors.New("software reset did not complete")
}

// SetRate implements acquisition.Driver.
func (d *Driver) SetRate(ctx context.Context, band acquisition.RateBand) error {
	return bus.UpdateBits(ctx, d.regs, regCtrl1, ctrl1ODRMask, band.Code<<ctrl1ODRShift)
}

// PowerDown implements acquisition.Driver.
func (d *Driver) PowerDown(ctx context.Context) error {
	return bus.UpdateBits(ctx, d.regs, regCtrl1, ctrl1ODRMask, odrPowerDown)
}

// FIFOStatus reads FIFO_STATUS1 and FIFO_STATUS2 in one transfer.
func (d *Driver) FIFOStatus(ctx context.Context) (bool, int, error) {
	status, err := d.regs.ReadRegisters(ctx, regFIFOStatus1, 2)
	if err != nil {
		return false, 0, err
	}
	if len(status) < 2 {
		return false, 0, &bus.Error{
			Op: "read", Register: regFIFOStatus1, Length: 2, Err: errors.Errorf("got %d bytes", len(status)),
		}
	}
	return status[1]&status2WtmIA != 0, int(status[0]), nil
}

// ReadFIFO implements acquisition.Driver.
func (d *Driver) ReadFIFO(ctx context.Context, entries int) ([]byte, error) {
	return d.regs.ReadRegisters(ctx, regFIFOData, entries*RecordWidth)
}

// Decode converts one FIFO record to hPa and °C.
func (d *Driver) Decode(record []byte, out []float32) {
	out[0] = convert.Scale(float64(convert.Int24LE(record[0:3])), pressureCountsPerHPa)
	out[1] = convert.Scale(float64(convert.Int16LE(record[3:5])), temperatureCountsPerC)
}
