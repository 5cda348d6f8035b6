//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/button-sensor/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pin int, polarity logic.Polarity) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RPIOReader is not available on non-Linux platforms.
type RPIOReader struct{}

// NewRPIOReader returns an error on non-Linux platforms.
func NewRPIOReader(pin int, polarity logic.Polarity) (*RPIOReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RPIOReader) Read() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RPIOReader) Close() error {
	return nil
}
