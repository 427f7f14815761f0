package acquisition

import "go.viam.com/datalog/convert"

// Batch is one channel's worth of converted samples from a single drain. Data holds Size bytes
// of little-endian float32 values and all of them share Timestamp, in seconds since the
// sensor's epoch. Data is reused by the worker on its next cycle; copy it to keep it.
type Batch struct {
	Sensor    ID
	Channel   uint8
	Data      []byte
	Size      uint16
	Timestamp float64
}

// Values decodes Data into a freshly allocated slice.
func (b Batch) Values() []float32 {
	return convert.Float32s(b.Data[:b.Size])
}

// DataReady consumes finished batches. OnBatch is called from the worker goroutine and must
// return promptly.
type DataReady interface {
	OnBatch(batch Batch)
}

// DataReadyFunc adapts a function to DataReady.
type DataReadyFunc func(batch Batch)

// OnBatch calls f.
func (f DataReadyFunc) OnBatch(batch Batch) {
	f(batch)
}

// NoopDataReady discards every batch. It is what a sensor uses when no consumer is attached.
type NoopDataReady struct{}

// OnBatch does nothing.
func (NoopDataReady) OnBatch(Batch) {}
