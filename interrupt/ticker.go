package interrupt

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Ticker is a Source that fires at a fixed interval, for sensors without a data-ready line.
type Ticker struct {
	clk      clock.Clock
	interval chan time.Duration
	current  time.Duration
}

// NewTicker returns a Ticker firing every interval on clk.
func NewTicker(clk clock.Clock, interval time.Duration) (*Ticker, error) {
	if interval <= 0 {
		return nil, errors.Errorf("ticker interval must be positive, got %v", interval)
	}
	return &Ticker{clk: clk, interval: make(chan time.Duration, 1), current: interval}, nil
}

// IntervalForRate returns the tick interval matching a sample rate in Hz.
func IntervalForRate(hz float64) time.Duration {
	if hz <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / hz)
}

// SetInterval changes the interval. The running ticker picks it up immediately; if several
// changes arrive before that, the last one wins.
func (t *Ticker) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	for {
		select {
		case t.interval <- interval:
			return
		default:
		}
		select {
		case <-t.interval:
		default:
		}
	}
}

// Run implements Source.
func (t *Ticker) Run(ctx context.Context, h Handler) {
	ticker := t.clk.Ticker(t.current)
	defer func() {
		ticker.Stop()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case interval := <-t.interval:
			ticker.Stop()
			t.current = interval
			ticker = t.clk.Ticker(interval)
		case <-ticker.C:
			h.HandleInterrupt()
		}
	}
}

// Close implements Source.
func (t *Ticker) Close() error {
	return nil
}
