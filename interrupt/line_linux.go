//go:build linux

package interrupt

import (
	"context"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Line is a Source on a GPIO character device line, reporting rising edges. It uses the kernel's
// line event interface instead of sysfs polling.
type Line struct {
	line *gpio.LineWithEvent
}

// NewLine requests edge events for offset on the chip at chipDev (e.g. "/dev/gpiochip0").
func NewLine(chipDev string, offset uint32) (*Line, error) {
	chip, err := gpio.OpenChip(chipDev)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", chipDev)
	}
	defer goutils.UncheckedErrorFunc(chip.Close)

	line, err := chip.OpenLineWithEvents(offset, gpio.Input, gpio.BothEdges, "datalog")
	if err != nil {
		return nil, errors.Wrapf(err, "requesting events for %s line %d", chipDev, offset)
	}
	return &Line{line: line}, nil
}

// Run implements Source.
func (l *Line) Run(ctx context.Context, h Handler) {
	events := l.line.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.RisingEdge {
				h.HandleInterrupt()
			}
		}
	}
}

// Close releases the line.
func (l *Line) Close() error {
	return l.line.Close()
}
