//go:build !linux

package button

import "errors"

// GPIOReader is not available on non-Linux platforms.
type GPIOReader struct{}

// NewGPIOReader returns an error on non-Linux platforms.
func NewGPIOReader(string, int) (*GPIOReader, error) {
	return nil, errors.New("button: gpio not supported on this platform (requires Linux)")
}

func (r *GPIOReader) Pressed() (bool, error) {
	return false, errors.New("button: gpio not supported")
}

func (r *GPIOReader) Close() error { return nil }
