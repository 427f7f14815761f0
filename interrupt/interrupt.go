// Package interrupt provides the sources of data-ready edges that wake sensor workers: GPIO
// lines wired to a sensor's interrupt pin, and a timer for sensors without one.
package interrupt

import (
	"context"
)

// Handler receives edges. acquisition.Sensor implements it.
type Handler interface {
	HandleInterrupt()
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func()

// HandleInterrupt calls f.
func (f HandlerFunc) HandleInterrupt() {
	f()
}

// A Source delivers edges to a Handler. Run blocks until ctx is done and must never block the
// handler's caller beyond the handler itself, which is expected to return immediately.
type Source interface {
	Run(ctx context.Context, h Handler)
	Close() error
}
