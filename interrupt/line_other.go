//go:build !linux

package interrupt

import (
	"context"

	"github.com/pkg/errors"
)

// Line is only available on linux.
type Line struct{}

// NewLine always fails off linux.
func NewLine(chipDev string, offset uint32) (*Line, error) {
	return nil, errors.New("gpio character device lines are only supported on linux")
}

// Run implements Source.
func (l *Line) Run(ctx context.Context, h Handler) {}

// Close implements Source.
func (l *Line) Close() error { return nil }
