// Package gpio provides button input reading with hardware abstraction.
// The real implementations use the Linux GPIO character device (go-gpiocdev)
// or the BCM283x register interface (go-rpio).
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"

	"github.com/sweeney/button-sensor/internal/logic"
)

// Reader reads the button input.
type Reader interface {
	// Read returns the logical pressed state of the button.
	// Wiring polarity has already been applied.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Backend selects the GPIO driver.
type Backend string

const (
	BackendCdev Backend = "gpiocdev"
	BackendRPIO Backend = "rpio"
)

// Defaults (BCM numbering)
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 17
)

// Open creates a Reader for the given backend.
func Open(backend Backend, chip string, pin int, polarity logic.Polarity) (Reader, error) {
	switch backend {
	case BackendCdev:
		r, err := NewRealReader(chip, pin, polarity)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendRPIO:
		r, err := NewRPIOReader(pin, polarity)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown gpio backend %q", backend)
}
