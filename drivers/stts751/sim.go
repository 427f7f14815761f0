package stts751

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/datalog/bus/fakebus"
)

type simulator struct {
	dev   *fakebus.Device
	clk   clock.Clock
	start time.Time
}

// NewSimulator returns a fake STTS751 at addr. The temperature follows a slow sine around
// 25 °C and is latched whenever the high byte is read.
func NewSimulator(addr uint16, clk clock.Clock) *fakebus.Device {
	sim := &simulator{dev: fakebus.New(addr), clk: clk, start: clk.Now()}
	sim.dev.Set(regManufacturer, manufacturerID)
	sim.dev.Set(regConfig, configStop)
	sim.dev.OnRead(regTempHigh, func(length int) []byte {
		raw := sim.sample()
		sim.dev.SetLocked(regTempLow, byte(raw))
		out := make([]byte, length)
		out[0] = byte(uint16(raw) >> 8)
		return out
	})
	return sim.dev
}

func (sim *simulator) sample() int16 {
	if sim.dev.GetLocked(regConfig)&configStop != 0 {
		return 0
	}
	elapsed := sim.clk.Since(sim.start).Seconds()
	celsius := 25 + 2*math.Sin(2*math.Pi*elapsed/60)
	return int16(math.Round(celsius*16)) << 4
}
