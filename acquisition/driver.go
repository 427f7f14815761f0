package acquisition

import "context"

// RateBand is one supported hardware output data rate. A requested rate below Ceiling selects
// this band unless a lower band already matched.
type RateBand struct {
	Hz      float64
	Ceiling float64
	Code    byte
}

// QuantizeRate picks the band for a requested rate, checking bands from lowest to highest and
// choosing the first whose ceiling is above the request. Requests above every ceiling get the
// fastest band. bands must be sorted ascending and non-empty.
func QuantizeRate(bands []RateBand, requested float64) RateBand {
	for _, band := range bands {
		if requested < band.Ceiling {
			return band
		}
	}
	return bands[len(bands)-1]
}

// Driver is the chip-specific half of a sensor. A Worker is generic over it: the driver owns the
// register layout, the programming sequence and the record decoding, while the worker owns the
// lifecycle, the drain policy and batching.
type Driver interface {
	// Descriptor describes the sensor and its channels.
	Descriptor() Descriptor

	// Watermark is the number of FIFO entries that must be queued before a drain.
	Watermark() int

	// RecordWidth is the size in bytes of one FIFO entry.
	RecordWidth() int

	// Rates lists the supported output data rates, ascending.
	Rates() []RateBand

	// Program runs the device programming sequence up to, but not including, the output data
	// rate: reset, bus interface setup, FIFO bypass and power down, filtering, stream mode with the
	// watermark routed to the interrupt line. Any error aborts the whole sequence.
	Program(ctx context.Context, params Params) error

	// SetRate programs the output data rate.
	SetRate(ctx context.Context, band RateBand) error

	// PowerDown stops sampling.
	PowerDown(ctx context.Context) error

	// FIFOStatus reports the watermark flag and the number of queued entries.
	FIFOStatus(ctx context.Context) (watermark bool, level int, err error)

	// ReadFIFO reads entries records in one burst.
	ReadFIFO(ctx context.Context, entries int) ([]byte, error)

	// Decode converts one raw record into one physical value per channel. out has one slot per
	// channel of the descriptor.
	Decode(record []byte, out []float32)
}
