//go:build linux

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/sweeney/button-sensor/internal/logic"
)

// RPIOReader reads the button through /dev/gpiomem register access.
// Only one RPIOReader may be open at a time since rpio.Open maps the whole bank.
type RPIOReader struct {
	pin      rpio.Pin
	polarity logic.Polarity
}

// NewRPIOReader maps GPIO memory and configures pin as a biased input.
func NewRPIOReader(pin int, polarity logic.Polarity) (*RPIOReader, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}

	p := rpio.Pin(pin)
	p.Input()
	if polarity == logic.ActiveLow {
		p.PullUp()
	} else {
		p.PullDown()
	}

	return &RPIOReader{pin: p, polarity: polarity}, nil
}

// Read returns the logical pressed state.
func (r *RPIOReader) Read() (bool, error) {
	return r.polarity.Pressed(r.pin.Read() == rpio.High), nil
}

// Close restores the pull-down boot default and unmaps GPIO memory.
func (r *RPIOReader) Close() error {
	r.pin.PullDown()
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpio memory: %w", err)
	}
	return nil
}
