// Package registrar is an in-memory sensor registrar. It holds the static descriptor and the
// live status of every sensor, and is the host-facing side of configuration: setters here
// validate requests against the descriptor before a sensor picks them up through UpdateConfig.
package registrar

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/datalog/acquisition"
	"go.viam.com/datalog/logging"
)

var (
	// ErrUnknownSensor is returned for an id that was never registered.
	ErrUnknownSensor = errors.New("unknown sensor")
	// ErrUnknownChannel is returned for a channel index the sensor does not have.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrUnsupportedRate is returned when a requested rate is not in the channel's rate list.
	ErrUnsupportedRate = errors.New("unsupported output data rate")
	// ErrUnsupportedFullScale is returned when a requested full scale is not in the channel's list.
	ErrUnsupportedFullScale = errors.New("unsupported full scale")
)

type entry struct {
	desc   acquisition.Descriptor
	status acquisition.Status
}

// Registrar implements acquisition.Registrar.
type Registrar struct {
	mu      sync.RWMutex
	sensors []*entry
	logger  logging.Logger
}

var _ acquisition.Registrar = (*Registrar)(nil)

// New returns an empty Registrar.
func New(logger logging.Logger) *Registrar {
	return &Registrar{logger: logger}
}

// AddSensor registers a descriptor and returns the id assigned to it. Ids are dense and start
// at zero in registration order.
func (r *Registrar) AddSensor(desc acquisition.Descriptor) (acquisition.ID, error) {
	if desc.Name == "" {
		return 0, errors.New("sensor descriptor has no name")
	}
	if len(desc.Channels) == 0 {
		return 0, errors.Wrap(acquisition.ErrNoChannels, desc.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := acquisition.ID(len(r.sensors))
	status := acquisition.Status{
		Channels: lo.Map(desc.Channels, func(ch acquisition.ChannelDescriptor, _ int) acquisition.ChannelStatus {
			return ch.Defaults
		}),
	}
	r.sensors = append(r.sensors, &entry{desc: desc, status: status})
	r.logger.Debugw("sensor registered", "id", id, "name", desc.Name, "channels", len(desc.Channels))
	return id, nil
}

func (r *Registrar) lookup(id acquisition.ID) (*entry, error) {
	if id < 0 || int(id) >= len(r.sensors) {
		return nil, errors.Wrapf(ErrUnknownSensor, "id %d", id)
	}
	return r.sensors[id], nil
}

func (r *Registrar) channel(id acquisition.ID, ch int) (*entry, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if ch < 0 || ch >= len(e.desc.Channels) {
		return nil, errors.Wrapf(ErrUnknownChannel, "%s channel %d", e.desc.Name, ch)
	}
	return e, nil
}

// Descriptor returns the descriptor registered under id.
func (r *Registrar) Descriptor(id acquisition.ID) (acquisition.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(id)
	if err != nil {
		return acquisition.Descriptor{}, err
	}
	return e.desc, nil
}

// IDs lists every registered id in registration order.
func (r *Registrar) IDs() []acquisition.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Times(len(r.sensors), func(i int) acquisition.ID { return acquisition.ID(i) })
}

// Status returns a copy of the live status of a sensor.
func (r *Registrar) Status(id acquisition.ID) (acquisition.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(id)
	if err != nil {
		return acquisition.Status{}, err
	}
	return e.status.Clone(), nil
}

// SetStatus replaces the live status of a sensor.
func (r *Registrar) SetStatus(id acquisition.ID, status acquisition.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if len(status.Channels) != len(e.desc.Channels) {
		return errors.Errorf("%s has %d channels, status has %d", e.desc.Name, len(e.desc.Channels), len(status.Channels))
	}
	e.status = status.Clone()
	return nil
}

// SetSamplesPerTimestamp records the derived samples-per-timestamp of every channel.
func (r *Registrar) SetSamplesPerTimestamp(id acquisition.ID, spt []uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if len(spt) != len(e.status.Channels) {
		return errors.Errorf("%s has %d channels, got %d samples per timestamp", e.desc.Name, len(e.status.Channels), len(spt))
	}
	for i, n := range spt {
		e.status.Channels[i].SamplesPerTimestamp = n
	}
	return nil
}

// SetChannelRate requests a new output data rate for one channel. The rate must be one of the
// channel's listed rates. It is stored as requested even with a shared rate register; the sensor
// resolves which channel's rate wins when it programs the device.
func (r *Registrar) SetChannelRate(id acquisition.ID, ch int, rate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.channel(id, ch)
	if err != nil {
		return err
	}
	if !lo.Contains(e.desc.Channels[ch].Rates, rate) {
		return errors.Wrapf(ErrUnsupportedRate, "%v Hz for %s channel %d (supported: %v)",
			rate, e.desc.Name, ch, e.desc.Channels[ch].Rates)
	}
	e.status.Channels[ch].Rate = rate
	return nil
}

// SetChannelFullScale requests a new full scale for one channel.
func (r *Registrar) SetChannelFullScale(id acquisition.ID, ch int, fullScale float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.channel(id, ch)
	if err != nil {
		return err
	}
	if !lo.Contains(e.desc.Channels[ch].FullScales, fullScale) {
		return errors.Wrapf(ErrUnsupportedFullScale, "%v for %s channel %d (supported: %v)",
			fullScale, e.desc.Name, ch, e.desc.Channels[ch].FullScales)
	}
	e.status.Channels[ch].FullScale = fullScale
	return nil
}

// SetChannelActive enables or disables one channel.
func (r *Registrar) SetChannelActive(id acquisition.ID, ch int, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.channel(id, ch)
	if err != nil {
		return err
	}
	e.status.Channels[ch].Active = active
	return nil
}

// SetMeasuredRate records the rate a channel is actually delivering samples at.
func (r *Registrar) SetMeasuredRate(id acquisition.ID, ch int, hz float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.channel(id, ch)
	if err != nil {
		return err
	}
	e.status.Channels[ch].MeasuredRate = hz
	return nil
}

// ActiveChannels returns the indices of the active channels of a sensor.
func (r *Registrar) ActiveChannels(id acquisition.ID) ([]int, error) {
	status, err := r.Status(id)
	if err != nil {
		return nil, err
	}
	indices := lo.Range(len(status.Channels))
	return lo.Filter(indices, func(i, _ int) bool { return status.Channels[i].Active }), nil
}
