package acquisition

// Registrar is the sensor registry a Sensor is created against. It hands out ids, owns the
// host-visible status of every channel and is where a sensor's operating parameters are requested.
// A Sensor only reads parameters from it through UpdateConfig, and writes back what the
// worker derives: samples per timestamp and the rate actually programmed.
type Registrar interface {
	// AddSensor registers a sensor and returns its id.
	AddSensor(desc Descriptor) (ID, error)

	// Status returns a copy of a sensor's status.
	Status(id ID) (Status, error)

	// SetStatus replaces a sensor's status.
	SetStatus(id ID, status Status) error

	// SetSamplesPerTimestamp publishes how many samples share one timestamp, per channel.
	SetSamplesPerTimestamp(id ID, spt []uint16) error
}
