package acquisition

import (
	"github.com/pkg/errors"
)

var (
	// ErrShortDrain is logged when a burst read returns fewer bytes than the watermark asked for.
	// The partial batch is dropped; the next watermark interrupt resynchronizes.
	ErrShortDrain = errors.New("fifo burst read returned fewer records than the watermark")

	// ErrRegistryUnavailable is returned by UpdateConfig when the registrar cannot be read.
	ErrRegistryUnavailable = errors.New("sensor registry unavailable")

	// ErrNoChannels is returned by Create for a driver that describes no channels.
	ErrNoChannels = errors.New("sensor describes no channels")
)

// registryError wraps the registrar's failure so callers can match ErrRegistryUnavailable and
// still reach the cause.
type registryError struct {
	id  ID
	err error
}

func (e *registryError) Error() string {
	return errors.Wrapf(e.err, "%v for sensor %d", ErrRegistryUnavailable, e.id).Error()
}

func (e *registryError) Unwrap() error {
	return e.err
}

func (e *registryError) Is(target error) bool {
	return target == ErrRegistryUnavailable
}
