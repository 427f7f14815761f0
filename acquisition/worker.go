package acquisition

import (
	"context"

	"go.viam.com/datalog/convert"
)

// run is the worker loop. The worker starts parked, so nothing touches the device before the
// first Start. After that it re-reads the state after every wake and acts on it; only ctx
// cancellation ends it.
func (s *Sensor) run(ctx context.Context) {
	if !s.kick.Wait(ctx) {
		return
	}
	for ctx.Err() == nil {
		switch s.State() {
		case Initializing:
			s.initialize(ctx)
		case Running:
			s.acquire(ctx)
		case Suspending:
			s.suspend(ctx)
		case Suspended:
			s.kick.Wait(ctx)
		default:
			s.logger.Errorw("unknown state, suspending", "state", s.State())
			s.SetState(Suspending)
		}
	}
}

// transition moves the sensor from one state to another unless someone else changed the state
// in the meantime.
func (s *Sensor) transition(from, to State) bool {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	s.logger.Debugw("state changed", "from", from, "to", to)
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
	return true
}

func (s *Sensor) initialize(ctx context.Context) {
	// the Start that brought us here is being served; only a later one may cut a retry short
	select {
	case <-s.kick.C():
	default:
	}
	if err := s.program(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warnw("programming failed, will retry", "error", err, "retry_in", s.retryInterval)
		s.waitRetry(ctx)
		return
	}
	s.transition(Initializing, Running)
}

// program runs the driver's register sequence, then resolves and programs the output data rate.
// The resolved rate is mirrored into the cache and published to the registrar so both agree with
// the device.
func (s *Sensor) program(ctx context.Context) error {
	s.paramsMu.Lock()
	rate := s.params.ResolveRate()
	params := s.params.Clone()
	s.paramsMu.Unlock()
	s.publishRates(params)

	if err := s.driver.Program(ctx, params); err != nil {
		return err
	}
	band := QuantizeRate(s.driver.Rates(), rate)
	if err := s.driver.SetRate(ctx, band); err != nil {
		return err
	}
	s.logger.Debugw("programmed", "requested_odr", rate, "odr", band.Hz)
	return nil
}

func (s *Sensor) publishRates(params Params) {
	status, err := s.registrar.Status(s.id)
	if err != nil || len(status.Channels) != len(params.Channels) {
		s.logger.Warnw("cannot publish programmed rate", "error", err)
		return
	}
	for i := range status.Channels {
		status.Channels[i].Rate = params.Channels[i].Rate
	}
	if err := s.registrar.SetStatus(s.id, status); err != nil {
		s.logger.Warnw("cannot publish programmed rate", "error", err)
	}
}

// waitRetry sleeps for the retry interval. A Start cuts the wait short.
func (s *Sensor) waitRetry(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.kick.C():
	case <-s.clk.After(s.retryInterval):
	}
}

// acquire blocks until the next data-ready edge and drains the FIFO if the sensor is still
// running. A Start wakes it without draining so the loop can reprogram.
func (s *Sensor) acquire(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-s.kick.C():
		return
	case <-s.handoff.C():
	}
	if s.State() != Running {
		return
	}
	s.drain(ctx)
}

// drain reads one watermark's worth of records if, and only if, the device reports the watermark
// reached with at least that many entries queued. Each active channel is handed to the sink as
// one batch stamped with the latest interrupt time.
func (s *Sensor) drain(ctx context.Context) {
	watermark := s.driver.Watermark()
	reached, level, err := s.driver.FIFOStatus(ctx)
	if err != nil {
		s.logger.Warnw("reading fifo status", "error", err)
		return
	}
	if !reached || level < watermark {
		return
	}

	timestamp := s.timestamp.Load()
	width := s.driver.RecordWidth()
	raw, err := s.driver.ReadFIFO(ctx, watermark)
	if err != nil {
		s.logger.Warnw("reading fifo", "error", err)
		return
	}
	s.drains.Inc()
	if len(raw) < watermark*width {
		s.shortDrains.Inc()
		s.logger.Warnw(ErrShortDrain.Error(), "expected_bytes", watermark*width, "got_bytes", len(raw))
		return
	}

	for i := 0; i < watermark; i++ {
		s.driver.Decode(raw[i*width:(i+1)*width], s.record)
		for ch := range s.values {
			s.values[ch][i] = s.record[ch]
		}
	}
	s.samples.Add(uint64(watermark))

	s.paramsMu.Lock()
	active := s.params.ActiveFlags()
	s.paramsMu.Unlock()

	sink := s.dataReady()
	for ch, on := range active {
		if !on {
			continue
		}
		n := convert.PutFloat32s(s.payloads[ch], s.values[ch])
		sink.OnBatch(Batch{
			Sensor:    s.id,
			Channel:   s.desc.Channels[ch].ID,
			Data:      s.payloads[ch][:n],
			Size:      uint16(n),
			Timestamp: timestamp,
		})
		s.batches.Inc()
	}
}

func (s *Sensor) suspend(ctx context.Context) {
	s.samples.Store(0)
	if err := s.driver.PowerDown(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warnw("powering down", "error", err)
	}
	s.transition(Suspending, Suspended)
}
