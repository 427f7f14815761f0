package hts221

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/datalog/bus/fakebus"
)

// Calibration of the simulated device: humidity is 32 %rH + H_OUT/100 and temperature is
// 20 °C + T_OUT/100.
var simCalibration = []byte{
	0x40, 0x80, 0xa0, 0xf0, 0x00, 0x00, // H0_rH_x2, H1_rH_x2, T0_degC_x8, T1_degC_x8, reserved, T1/T0 msb
	0x00, 0x00, 0x00, 0x00, // H0_T0_OUT, reserved
	0x80, 0x0c, // H1_T0_OUT = 3200
	0x00, 0x00, // T0_OUT = 0
	0xe8, 0x03, // T1_OUT = 1000
}

type simulator struct {
	dev   *fakebus.Device
	clk   clock.Clock
	hz    float64
	last  time.Time
	ready bool
	n     int
}

// NewSimulator returns a fake HTS221 at addr.
func NewSimulator(addr uint16, clk clock.Clock) *fakebus.Device {
	sim := &simulator{dev: fakebus.New(addr), clk: clk}
	sim.dev.Set(regWhoAmI, whoAmIValue)
	for i, b := range simCalibration {
		sim.dev.Set(regCalibration+byte(i), b)
	}
	sim.dev.OnWrite(regCtrl2, func(data []byte) {
		sim.dev.SetLocked(regCtrl2, data[0]&^ctrl2Boot)
	})
	sim.dev.OnWrite(regCtrl1, func(data []byte) {
		sim.hz = 0
		if data[0]&ctrl1PD != 0 {
			sim.hz = odrHz(data[0] & ctrl1ODRMask)
		}
		sim.last = sim.clk.Now()
		sim.ready = false
	})
	sim.dev.OnRead(regStatus, func(length int) []byte {
		sim.advance()
		out := make([]byte, length)
		if sim.ready {
			out[0] = statusHDA | statusTDA
		}
		return out
	})
	sim.dev.OnRead(regHumidityOut, func(length int) []byte {
		sim.advance()
		sim.ready = false
		out := make([]byte, length)
		for i := range out {
			out[i] = sim.dev.GetLocked(regHumidityOut + byte(i))
		}
		return out
	})
	return sim.dev
}

func odrHz(code byte) float64 {
	for _, band := range rates {
		if band.Code == code {
			return band.Hz
		}
	}
	return 0
}

// advance latches a new sample into the output registers once a conversion period has passed.
func (sim *simulator) advance() {
	if sim.hz == 0 {
		return
	}
	period := time.Duration(float64(time.Second) / sim.hz)
	now := sim.clk.Now()
	if sim.last.Add(period).After(now) {
		return
	}
	for !sim.last.Add(period).After(now) {
		sim.last = sim.last.Add(period)
		sim.n++
	}
	phase := 2 * math.Pi * float64(sim.n) / 50
	hOut := int16(math.Round((45 + 5*math.Sin(phase) - 32) * 100))
	tOut := int16(math.Round((22.5 + math.Cos(phase) - 20) * 100))
	sim.dev.SetLocked(regHumidityOut, byte(hOut))
	sim.dev.SetLocked(regHumidityOut+1, byte(hOut>>8))
	sim.dev.SetLocked(regHumidityOut+2, byte(tOut))
	sim.dev.SetLocked(regHumidityOut+3, byte(tOut>>8))
	sim.ready = true
}
