// Package config defines the datalog configuration file: the log level and the list of sensors
// to run, each with its model, bus location, interrupt source and channel settings.
package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/datalog/acquisition"
	"go.viam.com/datalog/drivers"
	"go.viam.com/datalog/logging"
)

// Config is the root of a datalog configuration file.
type Config struct {
	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-"`

	LogLevel string   `json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Sensors  []Sensor `json:"sensors"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return utils.NewConfigValidationError("log_level", err)
		}
	}
	seen := map[string]struct{}{}
	for idx := range c.Sensors {
		path := fmt.Sprintf("sensors.%d", idx)
		if err := c.Sensors[idx].Validate(path); err != nil {
			return err
		}
		name := c.Sensors[idx].Name
		if _, ok := seen[name]; ok {
			return utils.NewConfigValidationError(path, errors.Errorf("duplicate sensor name %q", name))
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Level returns the configured log level, INFO when unset.
func (c *Config) Level() logging.Level {
	if c.LogLevel == "" {
		return logging.INFO
	}
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// AttributeValidator is implemented by converted model attributes that can check themselves.
type AttributeValidator interface {
	Validate(path string) error
}

// Sensor configures one physical sensor.
type Sensor struct {
	Name  string `json:"name"`
	Model string `json:"model"`

	I2CBus string `json:"i2c_bus,omitempty"`
	// I2CAddr of zero selects the model's default address.
	I2CAddr uint16 `json:"i2c_addr,omitempty" jsonschema:"maximum=127"`

	// InterruptPin is a periph.io pin name such as "GPIO17", or a character device line written
	// as "gpiochip0:17". Models without a data-ready line and sensors without a pin are polled.
	InterruptPin   string `json:"interrupt_pin,omitempty"`
	PollIntervalMs int    `json:"poll_interval_ms,omitempty" jsonschema:"minimum=0"`

	// Channels, when given, must list every channel of the model in order. A zero odr or fs keeps
	// the model default.
	Channels   []acquisition.ChannelParams `json:"channels,omitempty"`
	Attributes map[string]interface{}      `json:"attributes,omitempty"`
}

// Validate ensures all parts of the sensor config are valid. The model must be registered and
// its attributes must convert.
func (s *Sensor) Validate(path string) error {
	if s.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if s.Model == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	}
	model, err := drivers.MustLookup(s.Model)
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if s.I2CAddr > 0x7f {
		return utils.NewConfigValidationError(path, errors.Errorf("i2c_addr 0x%x is not a 7 bit address", s.I2CAddr))
	}
	if s.PollIntervalMs < 0 {
		return utils.NewConfigValidationError(path, errors.New("poll_interval_ms cannot be negative"))
	}
	if s.InterruptPin != "" {
		if !model.Interrupt {
			return utils.NewConfigValidationError(path, errors.Errorf("model %s has no interrupt line", s.Model))
		}
		if _, _, _, err := ParsePin(s.InterruptPin); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if model.AttributeMapConverter != nil {
		converted, err := model.AttributeMapConverter(s.Attributes)
		if err != nil {
			return utils.NewConfigValidationError(path+".attributes", err)
		}
		if validator, ok := converted.(AttributeValidator); ok {
			if err := validator.Validate(path + ".attributes"); err != nil {
				return err
			}
		}
	} else if len(s.Attributes) != 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("model %s takes no attributes", s.Model))
	}
	for idx, ch := range s.Channels {
		if ch.Rate < 0 || ch.FullScale < 0 {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.channels.%d", path, idx),
				errors.New("odr and fs cannot be negative"))
		}
	}
	return nil
}

// Address returns the configured I2C address or the model's default.
func (s *Sensor) Address(model drivers.Model) uint16 {
	if s.I2CAddr != 0 {
		return s.I2CAddr
	}
	return model.DefaultAddress
}

// PollInterval returns the configured timer period, zero when unset.
func (s *Sensor) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// HardwareEqual reports whether two sensor configs address the same device the same way. Sensors
// that differ only in channel settings can be reconfigured in place.
func (s *Sensor) HardwareEqual(other *Sensor) bool {
	if s.Name != other.Name || s.Model != other.Model || s.I2CBus != other.I2CBus || s.I2CAddr != other.I2CAddr ||
		s.InterruptPin != other.InterruptPin || s.PollIntervalMs != other.PollIntervalMs {
		return false
	}
	return reflect.DeepEqual(s.Attributes, other.Attributes)
}

// ParsePin splits an interrupt pin setting. A "chip:offset" value names a character device line
// and returns its device path; anything else is a periph.io pin name returned as name.
func ParsePin(pin string) (name, chipDev string, offset uint32, err error) {
	chip, line, ok := strings.Cut(pin, ":")
	if !ok {
		return pin, "", 0, nil
	}
	if chip == "" {
		return "", "", 0, errors.Errorf("interrupt pin %q has no gpio chip", pin)
	}
	n, err := strconv.ParseUint(line, 10, 32)
	if err != nil {
		return "", "", 0, errors.Wrapf(err, "interrupt pin %q has a bad line offset", pin)
	}
	if !filepath.IsAbs(chip) {
		chip = filepath.Join("/dev", chip)
	}
	return "", chip, uint32(n), nil
}
