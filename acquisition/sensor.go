// Package acquisition implements the per-sensor acquisition worker: the interrupt handoff, the
// lifecycle state machine, the watermark FIFO drain and configuration sync with the registrar.
// Everything chip specific lives behind Driver.
package acquisition

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/datalog/convert"
	"go.viam.com/datalog/logging"
	"go.viam.com/datalog/utils"
)

// DefaultRetryInterval is how long a worker waits before reprogramming a device after a bus error.
const DefaultRetryInterval = 100 * time.Millisecond

// Stats are the running counters of a sensor's worker.
type Stats struct {
	Interrupts  uint64
	Drains      uint64
	Batches     uint64
	ShortDrains uint64
	// Samples is reset every time the sensor is suspended.
	Samples uint64
}

// Option configures a Sensor at Create.
type Option func(*Sensor)

// WithLogger sets the logger the sensor and its worker log to.
func WithLogger(logger logging.Logger) Option {
	return func(s *Sensor) {
		s.logger = logger
	}
}

// WithClock sets the clock used for timestamps and retry delays. Timestamps are reported in
// seconds since epoch.
func WithClock(clk clock.Clock, epoch time.Time) Option {
	return func(s *Sensor) {
		s.clk = clk
		s.epoch = epoch
	}
}

// WithDataReady sets the consumer of finished batches.
func WithDataReady(sink DataReady) Option {
	return func(s *Sensor) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithRetryInterval sets the delay between failed programming attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Sensor) {
		s.retryInterval = d
	}
}

// WithTransitionHook registers a function called every time the worker moves the sensor from one
// state to another.
func WithTransitionHook(hook func(from, to State)) Option {
	return func(s *Sensor) {
		s.onTransition = hook
	}
}

// Sensor is one physical sensor instance together with the goroutine acquiring from it.
type Sensor struct {
	id        ID
	desc      Descriptor
	driver    Driver
	registrar Registrar
	logger    logging.Logger

	clk           clock.Clock
	epoch         time.Time
	retryInterval time.Duration
	onTransition  func(from, to State)

	state     atomic.Int32
	timestamp atomic.Float64
	handoff   *Signal
	kick      *Signal

	paramsMu sync.Mutex
	params   Params

	sinkMu sync.Mutex
	sink   DataReady

	interrupts  atomic.Uint64
	drains      atomic.Uint64
	batches     atomic.Uint64
	shortDrains atomic.Uint64
	samples     atomic.Uint64

	// owned by the worker goroutine
	values   [][]float32
	payloads [][]byte
	record   []float32

	workers utils.StoppableWorkers
}

// Create registers the driver's sensor with the registrar, seeds its status from initial (or
// the descriptor defaults when initial is nil) and starts its worker. The sensor starts out
// Suspended; call Start to begin acquiring.
func Create(ctx context.Context, driver Driver, registrar Registrar, initial *Params, opts ...Option) (*Sensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	desc := driver.Descriptor()
	if len(desc.Channels) == 0 {
		return nil, errors.Wrap(ErrNoChannels, desc.Name)
	}
	if initial != nil && len(initial.Channels) != len(desc.Channels) {
		return nil, errors.Errorf("%s has %d channels but %d initial channel parameters were given",
			desc.Name, len(desc.Channels), len(initial.Channels))
	}

	s := &Sensor{
		desc:          desc,
		driver:        driver,
		registrar:     registrar,
		clk:           clock.New(),
		retryInterval: DefaultRetryInterval,
		handoff:       NewSignal(),
		kick:          NewSignal(),
		sink:          NoopDataReady{},
	}
	s.epoch = s.clk.Now()
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger(desc.Name)
	}
	s.state.Store(int32(Suspended))

	id, err := registrar.AddSensor(desc)
	if err != nil {
		return nil, errors.Wrapf(err, "registering %s", desc.Name)
	}
	s.id = id

	status := DefaultStatus(desc, initial)
	if err := registrar.SetStatus(id, status); err != nil {
		return nil, errors.Wrapf(err, "seeding status of %s", desc.Name)
	}
	s.params = ParamsFromStatus(status)

	watermark := driver.Watermark()
	s.record = make([]float32, len(desc.Channels))
	s.values = make([][]float32, len(desc.Channels))
	s.payloads = make([][]byte, len(desc.Channels))
	for i := range desc.Channels {
		s.values[i] = make([]float32, watermark)
		s.payloads[i] = make([]byte, watermark*convert.Float32Size)
	}

	s.workers = utils.NewStoppableWorkers(s.run)
	s.logger.Debugw("sensor created", "id", id, "watermark", watermark)
	return s, nil
}

// ID returns the registrar assigned id.
func (s *Sensor) ID() ID {
	return s.id
}

// Name returns the descriptor name.
func (s *Sensor) Name() string {
	return s.desc.Name
}

// Driver returns the chip driver.
func (s *Sensor) Driver() Driver {
	return s.driver
}

// State returns the current lifecycle state.
func (s *Sensor) State() State {
	return State(s.state.Load())
}

// SetState overwrites the lifecycle state without waking the worker. The worker observes the
// new state at its next wake.
func (s *Sensor) SetState(state State) {
	s.state.Store(int32(state))
}

// Start requests acquisition. The worker is always woken and reprograms the device with the
// cached operating parameters.
func (s *Sensor) Start() {
	prev := State(s.state.Swap(int32(Initializing)))
	s.logger.Debugw("start requested", "from", prev)
	s.kick.Signal()
}

// Stop requests that acquisition stop. Stopping a sensor already stopping or stopped does
// nothing. A worker blocked waiting for data only observes the request at its next wake.
func (s *Sensor) Stop() {
	for {
		cur := State(s.state.Load())
		if cur == Suspending || cur == Suspended {
			return
		}
		if s.state.CompareAndSwap(int32(cur), int32(Suspending)) {
			s.logger.Debugw("stop requested", "from", cur)
			return
		}
	}
}

// HandleInterrupt records the time of a data-ready edge and wakes the worker. It never blocks
// and does no bus I/O, so it is safe to call from an interrupt source's goroutine at any rate.
// Edges arriving before the worker wakes are coalesced into one.
func (s *Sensor) HandleInterrupt() {
	s.timestamp.Store(s.clk.Since(s.epoch).Seconds())
	s.interrupts.Inc()
	s.handoff.Signal()
}

// Timestamp returns the time of the most recent interrupt in seconds since the epoch.
func (s *Sensor) Timestamp() float64 {
	return s.timestamp.Load()
}

// SetDataReady replaces the consumer of finished batches. nil detaches the consumer.
func (s *Sensor) SetDataReady(sink DataReady) {
	if sink == nil {
		sink = NoopDataReady{}
	}
	s.sinkMu.Lock()
	s.sink = sink
	s.sinkMu.Unlock()
}

func (s *Sensor) dataReady() DataReady {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	return s.sink
}

// Params returns a copy of the cached operating parameters.
func (s *Sensor) Params() Params {
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	return s.params.Clone()
}

// UpdateConfig pulls the operating parameters of every channel from the registrar into the
// cache and publishes the derived samples-per-timestamp back, computed at the rate the device
// will be programmed with. It reports whether any channel's rate changed. On error the cache is
// left untouched. It does not reprogram the device; pair it with Stop and Start for that.
func (s *Sensor) UpdateConfig(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	status, err := s.registrar.Status(s.id)
	if err != nil {
		return false, &registryError{id: s.id, err: err}
	}
	desc := s.desc
	if len(status.Channels) != len(desc.Channels) {
		return false, &registryError{
			id:  s.id,
			err: errors.Errorf("status has %d channels, expected %d", len(status.Channels), len(desc.Channels)),
		}
	}

	next := ParamsFromStatus(status)
	resolved := next.Clone()
	resolved.ResolveRate()
	spt := make([]uint16, len(desc.Channels))
	for i, ch := range resolved.Channels {
		spt[i] = SamplesPerTimestamp(ch.Rate, desc.Channels[i].SamplesPerTimestamp)
	}
	if err := s.registrar.SetSamplesPerTimestamp(s.id, spt); err != nil {
		return false, &registryError{id: s.id, err: err}
	}

	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	changed := false
	for i := range next.Channels {
		if next.Channels[i].Rate != s.params.Channels[i].Rate {
			changed = true
		}
	}
	s.params = next
	return changed, nil
}

// Stats returns a snapshot of the worker's counters.
func (s *Sensor) Stats() Stats {
	return Stats{
		Interrupts:  s.interrupts.Load(),
		Drains:      s.drains.Load(),
		Batches:     s.batches.Load(),
		ShortDrains: s.shortDrains.Load(),
		Samples:     s.samples.Load(),
	}
}

// Close stops the worker goroutine. It is not a lifecycle transition and leaves the device as
// it is; Stop the sensor first to power it down.
func (s *Sensor) Close() {
	s.workers.Stop()
}
