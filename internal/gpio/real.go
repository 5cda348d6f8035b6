//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/button-sensor/internal/logic"
)

// RealReader reads the button through the Linux GPIO character device.
type RealReader struct {
	chip     *gpiocdev.Chip
	line     *gpiocdev.Line
	polarity logic.Polarity
}

// NewRealReader requests pin on chip as an input biased to the released level:
// pull-up for active-low buttons, pull-down for active-high ones.
func NewRealReader(chipName string, pin int, polarity logic.Polarity) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, bias(polarity))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}

	return &RealReader{
		chip:     chip,
		line:     line,
		polarity: polarity,
	}, nil
}

func bias(p logic.Polarity) gpiocdev.LineReqOption {
	if p == logic.ActiveLow {
		return gpiocdev.WithPullUp
	}
	return gpiocdev.WithPullDown
}

// Read returns the logical pressed state.
func (r *RealReader) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return r.polarity.Pressed(v != 0), nil
}

// Close releases GPIO resources.
// The line is reconfigured to input with pull-down (the Pi boot default)
// before it is released.
func (r *RealReader) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
