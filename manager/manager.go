// Package manager runs the sensors named in a config. It owns one acquisition.Sensor per
// configured sensor together with the bus device and interrupt source feeding it, and handles
// reconfiguration while running.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"go.viam.com/datalog/acquisition"
	"go.viam.com/datalog/bus"
	"go.viam.com/datalog/config"
	"go.viam.com/datalog/drivers"
	"go.viam.com/datalog/interrupt"
	"go.viam.com/datalog/logging"
	"go.viam.com/datalog/registrar"
	"go.viam.com/datalog/utils"
)

// ErrUnknownSensor is returned when a sensor name is not managed.
var ErrUnknownSensor = errors.New("unknown sensor")

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock shared by every sensor, interrupt ticker and simulated device.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clk = clk
	}
}

// WithFake runs every sensor against its in-memory simulator instead of a real bus, driven by a
// timer.
func WithFake(fake bool) Option {
	return func(m *Manager) {
		m.fake = fake
	}
}

// WithDataReady sets the consumer of every sensor's batches.
func WithDataReady(sink acquisition.DataReady) Option {
	return func(m *Manager) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// WithRegistrar makes the manager register its sensors with r instead of a fresh registrar.
func WithRegistrar(r *registrar.Registrar) Option {
	return func(m *Manager) {
		m.registrar = r
	}
}

// WithBuses makes the manager attach real devices to bs.
func WithBuses(bs *bus.Buses) Option {
	return func(m *Manager) {
		m.buses = bs
	}
}

type managedSensor struct {
	cfg     config.Sensor
	model   drivers.Model
	sensor  *acquisition.Sensor
	source  interrupt.Source
	ticker  *interrupt.Ticker
	meter   *rateMeter
	workers utils.StoppableWorkers
}

// Manager owns the running sensors.
type Manager struct {
	logger    logging.Logger
	clk       clock.Clock
	epoch     time.Time
	fake      bool
	sink      acquisition.DataReady
	registrar *registrar.Registrar
	buses     *bus.Buses

	mu      sync.Mutex
	cfg     config.Config
	sensors map[acquisition.ID]*managedSensor
	byName  map[string]acquisition.ID
	running bool

	workers utils.StoppableWorkers
}

// New returns a Manager with no sensors.
func New(logger logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger:  logger,
		clk:     clock.New(),
		sink:    acquisition.NoopDataReady{},
		sensors: map[acquisition.ID]*managedSensor{},
		byName:  map[string]acquisition.ID{},
		workers: utils.NewStoppableWorkers(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.epoch = m.clk.Now()
	if m.registrar == nil {
		m.registrar = registrar.New(logger.Sublogger("registrar"))
	}
	if m.buses == nil {
		m.buses = bus.NewBuses()
	}
	return m
}

// NewFromConfig returns a Manager running every sensor in cfg. The sensors are created
// Suspended; call StartAll to begin acquiring.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (*Manager, error) {
	m := New(logger, opts...)
	m.logger.SetLevel(cfg.Level())
	for _, sensorCfg := range cfg.Sensors {
		if _, err := m.AddSensorFromConfig(ctx, sensorCfg); err != nil {
			return nil, multierr.Combine(err, m.Close(ctx))
		}
	}
	m.mu.Lock()
	m.cfg = *cfg
	m.mu.Unlock()
	return m, nil
}

// Registrar returns the registrar the manager's sensors are registered with.
func (m *Manager) Registrar() *registrar.Registrar {
	return m.registrar
}

// AddSensorFromConfig builds the driver, sensor and interrupt source for one configured sensor.
// The sensor is started right away if the manager is running.
func (m *Manager) AddSensorFromConfig(ctx context.Context, cfg config.Sensor) (acquisition.ID, error) {
	if err := cfg.Validate("sensor"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[cfg.Name]; ok {
		return 0, errors.Errorf("sensor %q already exists", cfg.Name)
	}

	model, err := drivers.MustLookup(cfg.Model)
	if err != nil {
		return 0, err
	}
	logger := m.logger.Sublogger(cfg.Name)

	regs, err := m.openDevice(cfg, model)
	if err != nil {
		return 0, err
	}
	driver, err := model.Build(ctx, regs, cfg.Attributes, logger)
	if err != nil {
		return 0, errors.Wrapf(err, "building %s", cfg.Name)
	}

	ms := &managedSensor{cfg: cfg, model: model}
	ms.meter = newRateMeter(m.registrar, m.sink, logger)
	sensor, err := acquisition.Create(ctx, driver, m.registrar, nil,
		acquisition.WithLogger(logger),
		acquisition.WithClock(m.clk, m.epoch),
		acquisition.WithDataReady(ms.meter),
	)
	if err != nil {
		return 0, errors.Wrapf(err, "creating %s", cfg.Name)
	}
	ms.sensor = sensor

	if err := m.applyChannels(sensor, cfg.Channels); err != nil {
		sensor.Close()
		return 0, err
	}
	if _, err := sensor.UpdateConfig(ctx); err != nil {
		sensor.Close()
		return 0, err
	}

	if err := m.attachSource(ms); err != nil {
		sensor.Close()
		return 0, err
	}

	m.sensors[sensor.ID()] = ms
	m.byName[cfg.Name] = sensor.ID()
	logger.Infow("sensor added", "id", sensor.ID(), "model", model.Name, "fake", m.fake)
	if m.running {
		sensor.Start()
	}
	return sensor.ID(), nil
}

func (m *Manager) openDevice(cfg config.Sensor, model drivers.Model) (bus.Registers, error) {
	addr := cfg.Address(model)
	if m.fake {
		if model.Simulator == nil {
			return nil, errors.Errorf("model %s has no simulator", model.Name)
		}
		return model.Simulator(addr, m.clk), nil
	}
	b, err := m.buses.Get(cfg.I2CBus)
	if err != nil {
		return nil, err
	}
	if model.AutoIncrement {
		return b.Device(addr), nil
	}
	return b.PlainDevice(addr), nil
}

// applyChannels pushes configured channel settings through the registrar setters, which check
// them against the descriptor.
func (m *Manager) applyChannels(sensor *acquisition.Sensor, channels []acquisition.ChannelParams) error {
	if len(channels) == 0 {
		return nil
	}
	id := sensor.ID()
	desc, err := m.registrar.Descriptor(id)
	if err != nil {
		return err
	}
	if len(channels) != len(desc.Channels) {
		return errors.Errorf("%s has %d channels but %d are configured", desc.Name, len(desc.Channels), len(channels))
	}
	for ch, params := range channels {
		if err := m.registrar.SetChannelActive(id, ch, params.Active); err != nil {
			return err
		}
		if params.Rate > 0 {
			if err := m.registrar.SetChannelRate(id, ch, params.Rate); err != nil {
				return err
			}
		}
		if params.FullScale > 0 {
			if err := m.registrar.SetChannelFullScale(id, ch, params.FullScale); err != nil {
				return err
			}
		}
	}
	return nil
}

// attachSource picks the interrupt source for a sensor and starts feeding it. Sensors without a
// data-ready line, without a configured pin, or running against a simulator are driven by a
// ticker.
func (m *Manager) attachSource(ms *managedSensor) error {
	useTimer := m.fake || !ms.model.Interrupt || ms.cfg.InterruptPin == ""
	if useTimer {
		ticker, err := interrupt.NewTicker(m.clk, m.timerInterval(ms))
		if err != nil {
			return err
		}
		ms.source = ticker
		ms.ticker = ticker
	} else {
		name, chipDev, offset, err := config.ParsePin(ms.cfg.InterruptPin)
		if err != nil {
			return err
		}
		if chipDev != "" {
			ms.source, err = interrupt.NewLine(chipDev, offset)
		} else {
			ms.source, err = interrupt.NewGPIO(name)
		}
		if err != nil {
			return err
		}
	}
	sensor := ms.sensor
	source := ms.source
	ms.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		source.Run(ctx, sensor)
	})
	return nil
}

// timerInterval is the configured poll interval, or the time the device takes to fill its
// watermark at the resolved rate.
func (m *Manager) timerInterval(ms *managedSensor) time.Duration {
	if d := ms.cfg.PollInterval(); d > 0 {
		return d
	}
	params := ms.sensor.Params()
	rate := params.ResolveRate()
	watermark := ms.sensor.Driver().Watermark()
	if watermark < 1 {
		watermark = 1
	}
	return interrupt.IntervalForRate(rate) * time.Duration(watermark)
}

// RemoveSensorByName stops a sensor, releases its interrupt source and powers the device down.
// Its registrar entry is kept.
func (m *Manager) RemoveSensorByName(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[name]
	if !ok {
		return errors.Wrap(ErrUnknownSensor, name)
	}
	ms := m.sensors[id]
	delete(m.sensors, id)
	delete(m.byName, name)
	return ms.close(ctx)
}

func (ms *managedSensor) close(ctx context.Context) error {
	ms.sensor.Stop()
	ms.workers.Stop()
	ms.sensor.Close()
	return multierr.Combine(
		errors.Wrapf(ms.source.Close(), "closing interrupt source of %s", ms.cfg.Name),
		errors.Wrapf(ms.sensor.Driver().PowerDown(ctx), "powering down %s", ms.cfg.Name),
	)
}

// Sensor returns the sensor with the given id.
func (m *Manager) Sensor(id acquisition.ID) (*acquisition.Sensor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sensors[id]
	if !ok {
		return nil, false
	}
	return ms.sensor, true
}

// SensorByName returns the sensor configured under name.
func (m *Manager) SensorByName(name string) (*acquisition.Sensor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return m.sensors[id].sensor, true
}

// SensorIDs lists the managed sensor ids in ascending order.
func (m *Manager) SensorIDs() []acquisition.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := maps.Keys(m.sensors)
	slices.Sort(ids)
	return ids
}

// StartAll starts every sensor, and every sensor added later.
func (m *Manager) StartAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	for _, ms := range m.sensors {
		ms.meter.reset()
		ms.sensor.Start()
	}
}

// StopAll stops every sensor.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	for _, ms := range m.sensors {
		ms.sensor.Stop()
	}
}

// Reconfigure applies the registrar's current settings to a sensor: it is stopped, its cached
// parameters are refreshed and, if the manager is running, it is started again which reprograms
// the device. It reports whether any rate changed.
func (m *Manager) Reconfigure(ctx context.Context, id acquisition.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sensors[id]
	if !ok {
		return false, errors.Wrapf(ErrUnknownSensor, "id %d", id)
	}
	return m.reconfigure(ctx, ms)
}

func (m *Manager) reconfigure(ctx context.Context, ms *managedSensor) (bool, error) {
	ms.sensor.Stop()
	changed, err := ms.sensor.UpdateConfig(ctx)
	if err != nil {
		return false, err
	}
	if changed {
		ms.meter.reset()
		if ms.ticker != nil {
			ms.ticker.SetInterval(m.timerInterval(ms))
		}
	}
	if m.running {
		ms.sensor.Start()
	}
	m.logger.Debugw("sensor reconfigured", "sensor", ms.cfg.Name, "rate_changed", changed)
	return changed, nil
}

// Apply moves the manager to cfg. Removed sensors are torn down, added ones built, sensors whose
// device settings changed are rebuilt and sensors whose channel settings changed are
// reconfigured in place.
func (m *Manager) Apply(ctx context.Context, cfg *config.Config) error {
	m.mu.Lock()
	diff := config.DiffConfigs(m.cfg, *cfg)
	m.mu.Unlock()
	m.logger.CDebugf(ctx, "applying config: %d added, %d removed, %d modified, %d reconfigured",
		len(diff.Added), len(diff.Removed), len(diff.Modified), len(diff.Reconfigured))

	if !diff.LogLevelEqual {
		m.logger.SetLevel(cfg.Level())
	}

	var err error
	for _, removed := range diff.Removed {
		err = multierr.Combine(err, m.RemoveSensorByName(ctx, removed.Name))
	}
	for _, modified := range diff.Modified {
		err = multierr.Combine(err, m.RemoveSensorByName(ctx, modified.Name))
		_, addErr := m.AddSensorFromConfig(ctx, modified)
		err = multierr.Combine(err, addErr)
	}
	for _, added := range diff.Added {
		_, addErr := m.AddSensorFromConfig(ctx, added)
		err = multierr.Combine(err, addErr)
	}
	for _, reconfigured := range diff.Reconfigured {
		err = multierr.Combine(err, m.applySensorChannels(ctx, reconfigured))
	}

	m.mu.Lock()
	m.cfg = *cfg
	m.mu.Unlock()
	return err
}

func (m *Manager) applySensorChannels(ctx context.Context, cfg config.Sensor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[cfg.Name]
	if !ok {
		return errors.Wrap(ErrUnknownSensor, cfg.Name)
	}
	ms := m.sensors[id]
	if err := m.applyChannels(ms.sensor, cfg.Channels); err != nil {
		return err
	}
	ms.cfg = cfg
	_, err := m.reconfigure(ctx, ms)
	return err
}

// Close stops watching the config and tears every sensor down.
func (m *Manager) Close(ctx context.Context) error {
	m.workers.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	var err error
	for id, ms := range m.sensors {
		err = multierr.Combine(err, ms.close(ctx))
		delete(m.sensors, id)
		delete(m.byName, ms.cfg.Name)
	}
	return multierr.Combine(err, m.buses.Close())
}
