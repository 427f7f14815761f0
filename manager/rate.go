package manager

import (
	"sync"

	"github.com/montanaflynn/stats"

	"go.viam.com/datalog/acquisition"
	"go.viam.com/datalog/convert"
	"go.viam.com/datalog/logging"
	"go.viam.com/datalog/utils"
)

// rateWindow is how many batch-to-batch rate estimates are averaged per channel.
const rateWindow = 16

type measuredRateSetter interface {
	SetMeasuredRate(id acquisition.ID, ch int, hz float64) error
}

// rateMeter measures the rate each channel actually delivers samples at and records it as the
// channel's measured rate in the registrar. Every batch is passed on to next unchanged.
type rateMeter struct {
	registrar measuredRateSetter
	next      acquisition.DataReady
	logger    logging.Logger

	mu       sync.Mutex
	last     map[uint8]float64
	estimate map[uint8]*utils.RollingWindow
}

func newRateMeter(registrar measuredRateSetter, next acquisition.DataReady, logger logging.Logger) *rateMeter {
	r := &rateMeter{registrar: registrar, next: next, logger: logger}
	r.reset()
	return r
}

// reset forgets the previous batch times, so the gap across a stop is not counted.
func (r *rateMeter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = map[uint8]float64{}
	r.estimate = map[uint8]*utils.RollingWindow{}
}

// OnBatch implements acquisition.DataReady.
func (r *rateMeter) OnBatch(batch acquisition.Batch) {
	if hz, ok := r.observe(batch); ok {
		if err := r.registrar.SetMeasuredRate(batch.Sensor, int(batch.Channel), hz); err != nil {
			r.logger.Warnw("cannot record measured rate", "channel", batch.Channel, "error", err)
		}
	}
	r.next.OnBatch(batch)
}

// observe adds the rate implied by batch to its channel's window and returns the window mean.
// The first batch after a reset only marks the time.
func (r *rateMeter) observe(batch acquisition.Batch) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, seen := r.last[batch.Channel]
	r.last[batch.Channel] = batch.Timestamp
	elapsed := batch.Timestamp - prev
	if !seen || elapsed <= 0 {
		return 0, false
	}

	samples := float64(int(batch.Size) / convert.Float32Size)
	window, ok := r.estimate[batch.Channel]
	if !ok {
		window = utils.NewRollingWindow(rateWindow)
		r.estimate[batch.Channel] = window
	}
	window.Add(samples / elapsed)

	mean, err := stats.Mean(window.Values())
	if err != nil {
		return 0, false
	}
	hz, err := stats.Round(mean, 2)
	if err != nil {
		return mean, true
	}
	return hz, true
}
