package inject

import (
	"go.viam.com/datalog/acquisition"
)

// Registrar is an injected sensor registrar.
type Registrar struct {
	acquisition.Registrar
	AddSensorFunc              func(desc acquisition.Descriptor) (acquisition.ID, error)
	StatusFunc                 func(id acquisition.ID) (acquisition.Status, error)
	SetStatusFunc              func(id acquisition.ID, status acquisition.Status) error
	SetSamplesPerTimestampFunc func(id acquisition.ID, spt []uint16) error
}

// AddSensor calls the injected AddSensor or the real version.
func (r *Registrar) AddSensor(desc acquisition.Descriptor) (acquisition.ID, error) {
	if r.AddSensorFunc == nil {
		return r.Registrar.AddSensor(desc)
	}
	return r.AddSensorFunc(desc)
}

// Status calls the injected Status or the real version.
func (r *Registrar) Status(id acquisition.ID) (acquisition.Status, error) {
	if r.StatusFunc == nil {
		return r.Registrar.Status(id)
	}
	return r.StatusFunc(id)
}

// SetStatus calls the injected SetStatus or the real version.
func (r *Registrar) SetStatus(id acquisition.ID, status acquisition.Status) error {
	if r.SetStatusFunc == nil {
		return r.Registrar.SetStatus(id, status)
	}
	return r.SetStatusFunc(id, status)
}

// SetSamplesPerTimestamp calls the injected SetSamplesPerTimestamp or the real version.
func (r *Registrar) SetSamplesPerTimestamp(id acquisition.ID, spt []uint16) error {
	if r.SetSamplesPerTimestampFunc == nil {
		return r.Registrar.SetSamplesPerTimestamp(id, spt)
	}
	return r.SetSamplesPerTimestampFunc(id, spt)
}
