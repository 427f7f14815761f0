// Package drivers is the table of sensor models the datalog can run. Each driver package
// registers its model in an init function; blank import drivers/register to get all of them.
package drivers

import (
	"context"
	"reflect"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"go.viam.com/datalog/acquisition"
	"go.viam.com/datalog/bus"
	"go.viam.com/datalog/bus/fakebus"
	"go.viam.com/datalog/logging"
	"go.viam.com/datalog/utils"
)

// AttributeMapConverter converts the free-form attributes of a sensor config into the model's
// typed attribute struct.
type AttributeMapConverter func(attributes map[string]interface{}) (interface{}, error)

// Constructor builds a driver for a device reachable through regs. It may talk to the device,
// e.g. to check its identity or load calibration.
type Constructor func(ctx context.Context, regs bus.Registers, attrs interface{}, logger logging.Logger) (acquisition.Driver, error)

// Model describes how to build and run one kind of sensor.
type Model struct {
	Name           string
	DefaultAddress uint16
	// Interrupt is false for sensors without a data-ready line; they are driven by a timer at the
	// programmed output data rate instead.
	Interrupt bool
	// AutoIncrement is set for chips that need bus.AutoIncrement on multi-byte sub-addresses.
	AutoIncrement         bool
	Constructor           Constructor
	AttributeMapConverter AttributeMapConverter
	// Simulator returns an in-memory device that behaves like the sensor, producing samples at
	// the programmed output data rate as clk advances. It is used to run without hardware.
	Simulator func(addr uint16, clk clock.Clock) *fakebus.Device
}

var (
	modelsMu sync.RWMutex
	models   = map[string]Model{}
)

// Register adds a model to the table. Registering the same name twice panics.
func Register(m Model) {
	if m.Name == "" || m.Constructor == nil {
		panic(errors.New("driver model needs a name and a constructor"))
	}
	modelsMu.Lock()
	defer modelsMu.Unlock()
	if _, ok := models[m.Name]; ok {
		panic(errors.Errorf("driver model %q already registered", m.Name))
	}
	models[m.Name] = m
}

// Lookup returns the model registered under name.
func Lookup(name string) (Model, bool) {
	modelsMu.RLock()
	defer modelsMu.RUnlock()
	m, ok := models[name]
	return m, ok
}

// MustLookup is Lookup that returns an error for unknown models.
func MustLookup(name string) (Model, error) {
	m, ok := Lookup(name)
	if !ok {
		return Model{}, utils.NewUnknownModelError(name)
	}
	return m, nil
}

// Models lists the registered model names, sorted.
func Models() []string {
	modelsMu.RLock()
	defer modelsMu.RUnlock()
	names := maps.Keys(models)
	slices.Sort(names)
	return names
}

// ConvertAttributes returns an AttributeMapConverter decoding into T using its json tags.
// Unknown keys are an error.
func ConvertAttributes[T any]() AttributeMapConverter {
	return func(attributes map[string]interface{}) (interface{}, error) {
		return TransformAttributeMap[T](attributes)
	}
}

// TransformAttributeMap decodes an attribute map into T. T may be a pointer type, in which case
// a new value is allocated.
func TransformAttributeMap[T any](attributes map[string]interface{}) (T, error) {
	var out T
	var result interface{}

	toT := reflect.TypeOf(out)
	if toT == nil {
		return out, nil
	}
	if toT.Kind() == reflect.Ptr {
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate attribute type %T", out)
		}
		result = out
	} else {
		result = &out
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           result,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return out, errors.Wrap(err, "decoding attributes")
	}
	return out, nil
}

// Build converts attrs with the model's converter, if any, and constructs the driver.
func (m Model) Build(ctx context.Context, regs bus.Registers, attrs map[string]interface{}, logger logging.Logger) (
	acquisition.Driver, error,
) {
	var converted interface{}
	if m.AttributeMapConverter != nil {
		var err error
		if converted, err = m.AttributeMapConverter(attrs); err != nil {
			return nil, errors.Wrapf(err, "%s attributes", m.Name)
		}
	}
	return m.Constructor(ctx, regs, converted, logger)
}
