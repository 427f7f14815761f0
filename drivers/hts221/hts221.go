// Package hts221 implements the ST HTS221 relative humidity and temperature sensor. It has no
// FIFO: every data-ready edge yields one sample of each channel.
package hts221

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
	ModelName = "hts221"
	// DefaultAddress is the only I2C address of the HTS221.
	DefaultAddress = 0x5f

	// Watermark is one sample per data-ready edge.
	Watermark = 1
	// RecordWidth is humidity then temperature, two bytes each.
	RecordWidth = 4

	whoAmIValue = 0xbc
	bootPolls   = 10

	// 16 temperature and 32 humidity samples averaged per output.
	defaultAveraging byte = 0x1b
)

// register addresses.
const (
	regWhoAmI      byte = 0x0f
	regAvConf      byte = 0x10
	regCtrl1       byte = 0x20
	regCtrl2       byte = 0x21
	regCtrl3       byte = 0x22
	regStatus      byte = 0x27
	regHumidityOut byte = 0x28
	regCalibration byte = 0x30

	calibrationLength = 16
)

// register bits.
const (
	ctrl1PD      byte = 1 << 7
	ctrl1BDU     byte = 1 << 2
	ctrl1ODRMask byte = 0x03

	ctrl2Boot byte = 1 << 7

	ctrl3DRDYEn byte = 1 << 2

	statusHDA byte = 1 << 1
	statusTDA byte = 1 << 0
)

var rates = []acquisition.RateBand{
	{Hz: 1, Ceiling: 2, Code: 1},
	{Hz: 7, Ceiling: 8, Code: 2},
	{Hz: 12.5, Ceiling: 13.5, Code: 3},
}

func init() {
	drivers.Register(drivers.Model{
		Name:                  ModelName,
		DefaultAddress:        DefaultAddress,
		Interrupt:             true,
		AutoIncrement:         true,
		Constructor:           New,
		AttributeMapConverter: drivers.ConvertAttributes[*Attributes](),
		Simulator:             NewSimulator,
	})
}

// Attributes are the model specific settings of an HTS221.
type Attributes struct {
	// Averaging overrides the AV_CONF register.
	Averaging *byte `json:"averaging,omitempty"`
}

// calibration holds the factory calibration points stored in the device.
type calibration struct {
	h0RH, h1RH   float64
	t0C, t1C     float64
	h0Out, h1Out float64
	t0Out, t1Out float64
}

func parseCalibration(buf []byte) calibration {
	msb := buf[5]
	return calibration{
		h0RH:  float64(buf[0]) / 2,
		h1RH:  float64(buf[1]) / 2,
		t0C:   float64(uint16(msb&0x03)<<8|uint16(buf[2])) / 8,
		t1C:   float64(uint16(msb&0x0c)<<6|uint16(buf[3])) / 8,
		h0Out: float64(convert.Int16LE(buf[6:8])),
		h1Out: float64(convert.Int16LE(buf[10:12])),
		t0Out: float64(convert.Int16LE(buf[12:14])),
		t1Out: float64(convert.Int16LE(buf[14:16])),
	}
}

// Driver drives one HTS221.
type Driver struct {
	regs      bus.Registers
	averaging byte
	logger    logging.Logger

	// loaded by Program, used by Decode; both run on the sensor's worker.
	cal calibration
}

var _ acquisition.Driver = (*Driver)(nil)

// New returns a driver for the HTS221 reachable through regs. attrs may be nil.
func New(ctx context.Context, regs bus.Registers, attrs interface{}, logger logging.Logger) (acquisition.Driver, error) {
	d := &Driver{regs: regs, averaging: defaultAveraging, logger: logger}
	switch a := attrs.(type) {
	case nil:
	case *Attributes:
		if a != nil && a.Averaging != nil {
			d.averaging = *a.Averaging
		}
	default:
		return nil, utils.NewUnexpectedTypeError[*Attributes](attrs)
	}
	return d, nil
}

// Descriptor implements acquisition.Driver.
func (d *Driver) Descriptor() acquisition.Descriptor {
	odrs := []float64{1, 7, 12.5}
	return acquisition.Descriptor{
		Name:       "HTS221",
		SharedRate: true,
		Channels: []acquisition.ChannelDescriptor{
			{
				ID:                  0,
				Type:                acquisition.TypeHumidity,
				Dimensions:          1,
				Labels:              []string{"hum"},
				Unit:                "%",
				DataType:            acquisition.DataTypeFloat,
				Rates:               odrs,
				FullScales:          []float64{100},
				SamplesPerTimestamp: [2]uint16{0, 1000},
				Defaults: acquisition.ChannelStatus{
					Rate: 12.5, FullScale: 100, Sensitivity: 1,
					SamplesPerTimestamp: 13, WriteBufferSize: 1024, PacketSize: 64, ComChannel: -1,
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
				FullScales:          []float64{120},
				SamplesPerTimestamp: [2]uint16{0, 1000},
				Defaults: acquisition.ChannelStatus{
					Rate: 12.5, FullScale: 120, Sensitivity: 1,
					SamplesPerTimestamp: 13, WriteBufferSize: 1024, PacketSize: 64, ComChannel: -1,
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

// Program reboots the device, checks its identity, loads the calibration and routes data-ready
// to the DRDY pin. The device is left powered down.
func (d *Driver) Program(ctx context.Context, params acquisition.Params) error {
	if err := bus.SetBit(ctx, d.regs, regCtrl2, ctrl2Boot, true); err != nil {
		return err
	}
	booted := false
	for i := 0; i < bootPolls && !booted; i++ {
		ctrl2, err := bus.ReadByte(ctx, d.regs, regCtrl2)
		if err != nil {
			return err
		}
		booted = ctrl2&ctrl2Boot == 0
	}
	if !booted {
		return errors.New("memory reboot did not complete")
	}

	who, err := bus.ReadByte(ctx, d.regs, regWhoAmI)
	if err != nil {
		return err
	}
	if who != whoAmIValue {
		return errors.Errorf("unexpected WHO_AM_I 0x%02x, expected 0x%02x", who, whoAmIValue)
	}

	buf, err := d.regs.ReadRegisters(ctx, regCalibration, calibrationLength)
	if err != nil {
		return err
	}
	if len(buf) < calibrationLength {
		return errors.Errorf("short calibration read of %d bytes", len(buf))
	}
	d.cal = parseCalibration(buf)

	if err := d.PowerDown(ctx); err != nil {
		return err
	}
	if err := bus.SetBit(ctx, d.regs, regCtrl1, ctrl1BDU, true); err != nil {
		return err
	}
	if err := bus.WriteByte(ctx, d.regs, regAvConf, d.averaging); err != nil {
		return err
	}
	if err := bus.SetBit(ctx, d.regs, regCtrl3, ctrl3DRDYEn, true); err != nil {
		return err
	}
	d.logger.Debugw("programmed", "active", params.ActiveFlags(), "averaging", d.averaging)
	return nil
}

// SetRate powers the device up at the given rate.
func (d *Driver) SetRate(ctx context.Context, band acquisition.RateBand) error {
	return bus.UpdateBits(ctx, d.regs, regCtrl1, ctrl1PD|ctrl1ODRMask, ctrl1PD|band.Code&ctrl1ODRMask)
}

// PowerDown implements acquisition.Driver.
func (d *Driver) PowerDown(ctx context.Context) error {
	return bus.UpdateBits(ctx, d.regs, regCtrl1, ctrl1PD|ctrl1ODRMask, 0)
}

// FIFOStatus reports one queued entry once both humidity and temperature are available.
func (d *Driver) FIFOStatus(ctx context.Context) (bool, int, error) {
	status, err := bus.ReadByte(ctx, d.regs, regStatus)
	if err != nil {
		return false, 0, err
	}
	if status&(statusHDA|statusTDA) != statusHDA|statusTDA {
		return false, 0, nil
	}
	return true, 1, nil
}

// ReadFIFO reads the output registers. Only a single entry is ever available.
func (d *Driver) ReadFIFO(ctx context.Context, entries int) ([]byte, error) {
	if entries != 1 {
		return nil, errors.Errorf("hts221 holds a single sample, asked for %d", entries)
	}
	return d.regs.ReadRegisters(ctx, regHumidityOut, RecordWidth)
}

// Decode converts one output record to %rH and °C using the calibration loaded by Program.
func (d *Driver) Decode(record []byte, out []float32) {
	hum := convert.Interpolate(float64(convert.Int16LE(record[0:2])), d.cal.h0Out, d.cal.h1Out, d.cal.h0RH, d.cal.h1RH)
	switch {
	case hum < 0:
		hum = 0
	case hum > 100:
		hum = 100
	}
	out[0] = hum
	out[1] = convert.Interpolate(float64(convert.Int16LE(record[2:4])), d.cal.t0Out, d.cal.t1Out, d.cal.t0C, d.cal.t1C)
}
