package config

import (
	"reflect"
)

// A Diff is the difference between two configs, left and right, where left is usually old and
// right is new.
type Diff struct {
	Left, Right *Config
	Added       []Sensor
	Removed     []Sensor
	// Modified are sensors in right whose hardware settings changed; they must be rebuilt.
	Modified []Sensor
	// Reconfigured are sensors in right that differ from left only in their channel settings.
	Reconfigured []Sensor

	LogLevelEqual bool
}

// SensorsEqual reports whether no sensor was added, removed or changed.
func (d *Diff) SensorsEqual() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0 && len(d.Reconfigured) == 0
}

// DiffConfigs returns the difference between the two given configs from left to right. Sensors
// are matched by name.
func DiffConfigs(left, right Config) *Diff {
	diff := &Diff{
		Left:          &left,
		Right:         &right,
		LogLevelEqual: left.Level() == right.Level(),
	}

	leftM := make(map[string]Sensor, len(left.Sensors))
	for _, l := range left.Sensors {
		leftM[l.Name] = l
	}
	for _, r := range right.Sensors {
		l, ok := leftM[r.Name]
		delete(leftM, r.Name)
		switch {
		case !ok:
			diff.Added = append(diff.Added, r)
		case !l.HardwareEqual(&r):
			diff.Modified = append(diff.Modified, r)
		case !reflect.DeepEqual(l.Channels, r.Channels):
			diff.Reconfigured = append(diff.Reconfigured, r)
		}
	}
	// keep removal in left's order
	for _, l := range left.Sensors {
		if _, ok := leftM[l.Name]; ok {
			diff.Removed = append(diff.Removed, l)
		}
	}
	return diff
}
