package lps22hh

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/datalog/bus/fakebus"
)

const fifoDepth = 128

// simulator models the parts of the LPS22HH the driver touches: reset, the output data rate, and
// a stream mode FIFO that fills as clk advances.
type simulator struct {
	dev    *fakebus.Device
	clk    clock.Clock
	hz     float64
	stream bool
	last   time.Time
	fifo   [][RecordWidth]byte
	n      int
}

// NewSimulator returns a fake LPS22HH at addr.
func NewSimulator(addr uint16, clk clock.Clock) *fakebus.Device {
	sim := &simulator{dev: fakebus.New(addr), clk: clk}
	sim.dev.Set(regWhoAmI, whoAmIValue)
	sim.dev.OnWrite(regCtrl2, func(data []byte) {
		if data[0]&ctrl2SWReset != 0 {
			sim.reset()
		}
	})
	sim.dev.OnWrite(regCtrl1, func(data []byte) {
		sim.advance()
		sim.hz = odrHz((data[0] & ctrl1ODRMask) >> ctrl1ODRShift)
	})
	sim.dev.OnWrite(regFIFOCtrl, func(data []byte) {
		sim.advance()
		mode := data[0] & fifoModeMask
		if mode == fifoModeBypass {
			sim.fifo = sim.fifo[:0]
		}
		sim.stream = mode == fifoModeStream
	})
	sim.dev.OnRead(regFIFOStatus1, func(length int) []byte {
		sim.advance()
		out := make([]byte, length)
		out[0] = byte(len(sim.fifo))
		if length > 1 && len(sim.fifo) >= int(sim.dev.GetLocked(regFIFOWtm)&fifoWtmMask) && len(sim.fifo) > 0 {
			out[1] = status2WtmIA
		}
		return out
	})
	sim.dev.OnRead(regFIFOData, func(length int) []byte {
		sim.advance()
		n := length / RecordWidth
		if n > len(sim.fifo) {
			n = len(sim.fifo)
		}
		out := make([]byte, 0, n*RecordWidth)
		for _, rec := range sim.fifo[:n] {
			out = append(out, rec[:]...)
		}
		sim.fifo = append(sim.fifo[:0], sim.fifo[n:]...)
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

func (sim *simulator) reset() {
	sim.dev.SetLocked(regCtrl2, 0)
	sim.dev.SetLocked(regCtrl1, 0)
	sim.dev.SetLocked(regCtrl3, 0)
	sim.dev.SetLocked(regFIFOCtrl, 0)
	sim.dev.SetLocked(regFIFOWtm, 0)
	sim.hz = 0
	sim.stream = false
	sim.fifo = sim.fifo[:0]
}

// advance queues every sample converted since the last call.
func (sim *simulator) advance() {
	now := sim.clk.Now()
	if sim.hz == 0 || !sim.stream {
		sim.last = now
		return
	}
	period := time.Duration(float64(time.Second) / sim.hz)
	for !sim.last.Add(period).After(now) {
		sim.last = sim.last.Add(period)
		sim.push()
	}
}

func (sim *simulator) push() {
	phase := 2 * math.Pi * float64(sim.n) / 100
	sim.n++
	press := int32(math.Round((1013.25 + 0.5*math.Sin(phase)) * pressureCountsPerHPa))
	temp := int16(math.Round((23.5 + 0.2*math.Cos(phase)) * temperatureCountsPerC))

	var rec [RecordWidth]byte
	rec[0] = byte(press)
	rec[1] = byte(press >> 8)
	rec[2] = byte(press >> 16)
	rec[3] = byte(temp)
	rec[4] = byte(temp >> 8)
	if len(sim.fifo) == fifoDepth {
		sim.fifo = sim.fifo[1:]
	}
	sim.fifo = append(sim.fifo, rec)
}
