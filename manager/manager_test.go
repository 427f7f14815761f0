package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/datalog/acquisition"
	"go.viam.com/datalog/config"
	_ "go.viam.com/datalog/drivers/register"
	"go.viam.com/datalog/logging"
	"go.viam.com/datalog/registrar"
)

type collector struct {
	mu      sync.Mutex
	batches map[acquisition.ID][]acquisition.Batch
}

func newCollector() *collector {
	return &collector{batches: map[acquisition.ID][]acquisition.Batch{}}
}

func (c *collector) OnBatch(batch acquisition.Batch) {
	kept := batch
	kept.Data = append([]byte(nil), batch.Data...)
	c.mu.Lock()
	c.batches[batch.Sensor] = append(c.batches[batch.Sensor], kept)
	c.mu.Unlock()
}

func (c *collector) get(id acquisition.ID) []acquisition.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]acquisition.Batch(nil), c.batches[id]...)
}

func baroConfig(rate float64) config.Sensor {
	return config.Sensor{
		Name:         "baro",
		Model:        "lps22hh",
		InterruptPin: "GPIO17",
		Channels: []acquisition.ChannelParams{
			{Active: true, Rate: rate, FullScale: 1260},
			{Active: true, Rate: rate, FullScale: 85},
		},
	}
}

func boardTempConfig() config.Sensor {
	return config.Sensor{
		Name:     "board_temp",
		Model:    "stts751",
		Channels: []acquisition.ChannelParams{{Active: true, Rate: 4}},
	}
}

func newFakeManager(t *testing.T, cfg *config.Config, sink acquisition.DataReady) (*Manager, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	m, err := NewFromConfig(context.Background(), cfg, logging.NewTestLogger(t),
		WithClock(clk), WithFake(true), WithDataReady(sink))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, m.Close(context.Background()), test.ShouldBeNil)
	})
	return m, clk
}

func TestFakeSensorsDeliverBatches(t *testing.T) {
	sink := newCollector()
	m, clk := newFakeManager(t, &config.Config{Sensors: []config.Sensor{baroConfig(25), boardTempConfig()}}, sink)

	baro, ok := m.SensorByName("baro")
	test.That(t, ok, test.ShouldBeTrue)
	temp, ok := m.SensorByName("board_temp")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.SensorIDs(), test.ShouldResemble, []acquisition.ID{baro.ID(), temp.ID()})
	test.That(t, baro.State(), test.ShouldEqual, acquisition.Suspended)

	m.StartAll()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(500 * time.Millisecond)
		test.That(tb, len(sink.get(baro.ID())), test.ShouldBeGreaterThanOrEqualTo, 4)
		test.That(tb, len(sink.get(temp.ID())), test.ShouldBeGreaterThanOrEqualTo, 2)
	})

	for _, batch := range sink.get(baro.ID()) {
		values := batch.Values()
		test.That(t, values, test.ShouldHaveLength, 64)
		switch batch.Channel {
		case 0:
			test.That(t, values[0], test.ShouldAlmostEqual, 1013.25, 1)
		case 1:
			test.That(t, values[0], test.ShouldAlmostEqual, 23.5, 0.5)
		default:
			t.Fatalf("unexpected channel %d", batch.Channel)
		}
	}
	for _, batch := range sink.get(temp.ID()) {
		values := batch.Values()
		test.That(t, values, test.ShouldHaveLength, 1)
		test.That(t, values[0], test.ShouldAlmostEqual, 25, 2.5)
	}

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(500 * time.Millisecond)
		status, err := m.Registrar().Status(baro.ID())
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, status.Channels[0].MeasuredRate, test.ShouldBeGreaterThan, 0)
	})

	m.StopAll()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(500 * time.Millisecond)
		test.That(tb, baro.State(), test.ShouldEqual, acquisition.Suspended)
		test.That(tb, temp.State(), test.ShouldEqual, acquisition.Suspended)
	})
}

func TestConfiguredChannelsReachRegistrar(t *testing.T) {
	m, _ := newFakeManager(t, &config.Config{Sensors: []config.Sensor{baroConfig(75)}}, nil)
	baro, _ := m.SensorByName("baro")

	status, err := m.Registrar().Status(baro.ID())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status.Channels[0].Active, test.ShouldBeTrue)
	test.That(t, status.Channels[0].Rate, test.ShouldEqual, 75.0)
	test.That(t, status.Channels[1].Rate, test.ShouldEqual, 75.0)
	test.That(t, status.Channels[0].SamplesPerTimestamp, test.ShouldEqual, uint16(75))
	test.That(t, baro.Params().Channels[0].Rate, test.ShouldEqual, 75.0)
}

func TestSharedRateFollowsFirstActiveChannel(t *testing.T) {
	baroCfg := baroConfig(0)
	baroCfg.Channels = []acquisition.ChannelParams{
		{Active: false, Rate: 10, FullScale: 1260},
		{Active: true, Rate: 200, FullScale: 85},
	}
	m, _ := newFakeManager(t, &config.Config{Sensors: []config.Sensor{baroCfg}}, nil)
	baro, _ := m.SensorByName("baro")

	status, err := m.Registrar().Status(baro.ID())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status.Channels[0].Rate, test.ShouldEqual, 10.0)
	test.That(t, status.Channels[1].Rate, test.ShouldEqual, 200.0)
	test.That(t, status.Channels[0].SamplesPerTimestamp, test.ShouldEqual, uint16(200))

	m.mu.Lock()
	interval := m.timerInterval(m.sensors[baro.ID()])
	m.mu.Unlock()
	test.That(t, interval, test.ShouldEqual, 64*5*time.Millisecond)

	m.StartAll()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, baro.State(), test.ShouldEqual, acquisition.Running)
	})
	status, err = m.Registrar().Status(baro.ID())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status.Channels[0].Rate, test.ShouldEqual, 200.0)
	test.That(t, status.Channels[1].Rate, test.ShouldEqual, 200.0)
}

func TestTimerSource(t *testing.T) {
	m, _ := newFakeManager(t, &config.Config{Sensors: []config.Sensor{baroConfig(25), boardTempConfig()}}, nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.sensors {
		// every sensor is timer driven against a simulator, even with a pin configured
		test.That(t, ms.ticker, test.ShouldNotBeNil)
	}
	baro := m.sensors[m.byName["baro"]]
	test.That(t, m.timerInterval(baro), test.ShouldEqual, 64*40*time.Millisecond)
	temp := m.sensors[m.byName["board_temp"]]
	test.That(t, m.timerInterval(temp), test.ShouldEqual, 250*time.Millisecond)

	temp.cfg.PollIntervalMs = 100
	test.That(t, m.timerInterval(temp), test.ShouldEqual, 100*time.Millisecond)
}

func TestReconfigure(t *testing.T) {
	m, _ := newFakeManager(t, &config.Config{Sensors: []config.Sensor{baroConfig(25)}}, nil)
	baro, _ := m.SensorByName("baro")

	changed, err := m.Reconfigure(context.Background(), baro.ID())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, changed, test.ShouldBeFalse)

	test.That(t, m.Registrar().SetChannelRate(baro.ID(), 0, 100), test.ShouldBeNil)
	changed, err = m.Reconfigure(context.Background(), baro.ID())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, changed, test.ShouldBeTrue)
	test.That(t, baro.Params().Channels[0].Rate, test.ShouldEqual, 100.0)
	// not running, so the sensor stays down
	test.That(t, baro.State(), test.ShouldEqual, acquisition.Suspended)

	_, err = m.Reconfigure(context.Background(), 42)
	test.That(t, errors.Is(err, ErrUnknownSensor), test.ShouldBeTrue)
}

func TestReconfigureWhileRunning(t *testing.T) {
	sink := newCollector()
	m, clk := newFakeManager(t, &config.Config{Sensors: []config.Sensor{boardTempConfig()}}, sink)
	temp, _ := m.SensorByName("board_temp")
	m.StartAll()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(250 * time.Millisecond)
		test.That(tb, temp.State(), test.ShouldEqual, acquisition.Running)
	})

	test.That(t, m.Registrar().SetChannelRate(temp.ID(), 0, 1), test.ShouldBeNil)
	changed, err := m.Reconfigure(context.Background(), temp.ID())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, changed, test.ShouldBeTrue)

	before := len(sink.get(temp.ID()))
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(time.Second)
		test.That(tb, temp.State(), test.ShouldEqual, acquisition.Running)
		test.That(tb, len(sink.get(temp.ID())), test.ShouldBeGreaterThan, before)
	})
}

func TestAddRemove(t *testing.T) {
	m, _ := newFakeManager(t, &config.Config{}, nil)
	ctx := context.Background()

	id, err := m.AddSensorFromConfig(ctx, boardTempConfig())
	test.That(t, err, test.ShouldBeNil)
	sensor, ok := m.Sensor(id)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, sensor.Name(), test.ShouldEqual, "STTS751")

	_, err = m.AddSensorFromConfig(ctx, boardTempConfig())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already exists")

	bad := boardTempConfig()
	bad.Name = "other"
	bad.Channels = append(bad.Channels, acquisition.ChannelParams{Active: true})
	_, err = m.AddSensorFromConfig(ctx, bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "channels")

	unsupported := boardTempConfig()
	unsupported.Name = "fast"
	unsupported.Channels[0].Rate = 3
	_, err = m.AddSensorFromConfig(ctx, unsupported)
	test.That(t, errors.Is(err, registrar.ErrUnsupportedRate), test.ShouldBeTrue)

	test.That(t, m.RemoveSensorByName(ctx, "board_temp"), test.ShouldBeNil)
	_, ok = m.Sensor(id)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, errors.Is(m.RemoveSensorByName(ctx, "board_temp"), ErrUnknownSensor), test.ShouldBeTrue)
}

func TestAddWhileRunningStarts(t *testing.T) {
	m, clk := newFakeManager(t, &config.Config{}, nil)
	m.StartAll()

	id, err := m.AddSensorFromConfig(context.Background(), boardTempConfig())
	test.That(t, err, test.ShouldBeNil)
	sensor, _ := m.Sensor(id)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(250 * time.Millisecond)
		test.That(tb, sensor.State(), test.ShouldEqual, acquisition.Running)
	})
}

func TestNewFromConfigErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	_, err := NewFromConfig(ctx, &config.Config{Sensors: []config.Sensor{{Name: "x", Model: "nope"}}}, logger, WithFake(true))
	test.That(t, err, test.ShouldNotBeNil)

	cfg := &config.Config{Sensors: []config.Sensor{boardTempConfig(), baroConfig(15)}}
	_, err = NewFromConfig(ctx, cfg, logger, WithFake(true), WithClock(clock.NewMock()))
	test.That(t, errors.Is(err, registrar.ErrUnsupportedRate), test.ShouldBeTrue)
}

func TestApply(t *testing.T) {
	m, _ := newFakeManager(t, &config.Config{Sensors: []config.Sensor{baroConfig(25), boardTempConfig()}}, nil)
	oldTemp, _ := m.SensorByName("board_temp")
	baro, _ := m.SensorByName("baro")

	movedTemp := boardTempConfig()
	movedTemp.I2CAddr = 0x48
	humidity := config.Sensor{
		Name:     "humidity",
		Model:    "hts221",
		Channels: []acquisition.ChannelParams{{Active: true, Rate: 1}, {Active: true, Rate: 1}},
	}
	next := &config.Config{LogLevel: "warn", Sensors: []config.Sensor{baroConfig(50), movedTemp, humidity}}
	test.That(t, m.Apply(context.Background(), next), test.ShouldBeNil)

	test.That(t, m.logger.GetLevel(), test.ShouldEqual, logging.WARN)
	test.That(t, baro.Params().Channels[0].Rate, test.ShouldEqual, 50.0)

	newTemp, ok := m.SensorByName("board_temp")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, newTemp.ID(), test.ShouldNotEqual, oldTemp.ID())
	_, ok = m.SensorByName("humidity")
	test.That(t, ok, test.ShouldBeTrue)

	test.That(t, m.Apply(context.Background(), &config.Config{Sensors: []config.Sensor{baroConfig(50)}}), test.ShouldBeNil)
	_, ok = m.SensorByName("humidity")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, m.SensorIDs(), test.ShouldResemble, []acquisition.ID{baro.ID()})
}

func TestWatchConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "datalog.json")
	test.That(t, os.WriteFile(path, []byte(`{"sensors": [{"name": "board_temp", "model": "stts751"}]}`), 0o600),
		test.ShouldBeNil)
	cfg, err := config.Read(path)
	test.That(t, err, test.ShouldBeNil)

	m, _ := newFakeManager(t, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	test.That(t, m.WatchConfig(ctx, path), test.ShouldBeNil)

	// a broken file is ignored
	test.That(t, os.WriteFile(path, []byte(`{"sensors": [`), 0o600), test.ShouldBeNil)
	test.That(t, os.WriteFile(path, []byte(`{"sensors": [
		{"name": "board_temp", "model": "stts751"},
		{"name": "baro", "model": "lps22hh"}
	]}`), 0o600), test.ShouldBeNil)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		_, ok := m.SensorByName("baro")
		test.That(tb, ok, test.ShouldBeTrue)
	})
	_, ok := m.SensorByName("board_temp")
	test.That(t, ok, test.ShouldBeTrue)
}

func TestRateMeter(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reg := registrar.New(logger)
	id, err := reg.AddSensor(acquisition.Descriptor{
		Name:     "fake",
		Channels: []acquisition.ChannelDescriptor{{ID: 0}, {ID: 1}},
	})
	test.That(t, err, test.ShouldBeNil)

	sink := newCollector()
	meter := newRateMeter(reg, sink, logger)
	batch := func(ch uint8, samples int, ts float64) acquisition.Batch {
		data := make([]byte, samples*4)
		return acquisition.Batch{Sensor: id, Channel: ch, Data: data, Size: uint16(len(data)), Timestamp: ts}
	}

	meter.OnBatch(batch(0, 10, 1))
	status, err := reg.Status(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status.Channels[0].MeasuredRate, test.ShouldEqual, 0.0)

	meter.OnBatch(batch(0, 10, 2))
	meter.OnBatch(batch(0, 10, 2.5))
	meter.OnBatch(batch(1, 10, 2.5))
	status, err = reg.Status(id)
	test.That(t, err, test.ShouldBeNil)
	// mean of 10 Hz and 20 Hz
	test.That(t, status.Channels[0].MeasuredRate, test.ShouldEqual, 15.0)
	test.That(t, status.Channels[1].MeasuredRate, test.ShouldEqual, 0.0)
	test.That(t, sink.get(id), test.ShouldHaveLength, 4)

	meter.reset()
	meter.OnBatch(batch(0, 10, 100))
	status, err = reg.Status(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status.Channels[0].MeasuredRate, test.ShouldEqual, 15.0)

	for i := 0; i < 2*rateWindow; i++ {
		meter.OnBatch(batch(0, 5, 100+float64(i+1)))
	}
	status, err = reg.Status(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status.Channels[0].MeasuredRate, test.ShouldEqual, 5.0)
}
