//go:build linux

package button

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOReader reads an active-low button wired to a GPIO line with the
// internal pull-up enabled.
type GPIOReader struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewGPIOReader requests offset on the named chip (e.g. "gpiochip0").
func NewGPIOReader(chipName string, offset int) (*GPIOReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer("bedclock-button"))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button line %d: %w", offset, err)
	}

	return &GPIOReader{chip: chip, line: line}, nil
}

// Pressed returns true when the line is pulled low.
func (r *GPIOReader) Pressed() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button line: %w", err)
	}
	return v == 0, nil
}

// Close releases the line and the chip.
func (r *GPIOReader) Close() error {
	var errs []error
	if r.line != nil {
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
