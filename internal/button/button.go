// Package button turns raw samples of the single front-panel button into
// debounced press and release edges and double-click detection.
//
// The GPIO implementation uses the Linux GPIO character device. The fake
// reader lets the loop and tests run without hardware.
package button

import (
	"fmt"
	"time"
)

// PinReader reads the logical button state. Implementations handle the
// electrical polarity, so true always means "pressed".
type PinReader interface {
	Pressed() (bool, error)
	Close() error
}

// Defaults match the hardware the clock was built around.
const (
	DefaultDebounce          = 50 * time.Millisecond
	DefaultDoubleClickWindow = 700 * time.Millisecond
)

// Debouncer must be polled with Update at 100 Hz or faster. It is not safe
// for concurrent use; the main loop owns it.
type Debouncer struct {
	pin         PinReader
	now         func() time.Time
	debounce    time.Duration
	clickWindow time.Duration

	stable      bool
	lastRaw     bool
	lastChange  time.Time
	pressStart  time.Time
	lastPress   time.Time
	pressLength time.Duration

	lastClick  time.Time
	clickCount int

	pressedFlag  bool
	releasedFlag bool
	doubleFlag   bool
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithDebounce sets how long a raw reading must hold before it is accepted.
func WithDebounce(d time.Duration) Option {
	return func(b *Debouncer) { b.debounce = d }
}

// WithDoubleClickWindow sets the maximum gap between two releases that
// counts as a double click.
func WithDoubleClickWindow(d time.Duration) Option {
	return func(b *Debouncer) { b.clickWindow = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Debouncer) { b.now = now }
}

// New creates a Debouncer and takes the current pin state as the initial
// stable state, so a button held at boot does not produce a press edge.
func New(pin PinReader, opts ...Option) (*Debouncer, error) {
	b := &Debouncer{
		pin:         pin,
		now:         time.Now,
		debounce:    DefaultDebounce,
		clickWindow: DefaultDoubleClickWindow,
	}
	for _, opt := range opts {
		opt(b)
	}

	raw, err := pin.Pressed()
	if err != nil {
		return nil, fmt.Errorf("button: initial read: %w", err)
	}
	b.stable = raw
	b.lastRaw = raw
	b.lastChange = b.now()
	return b, nil
}

// Update samples the pin once and advances the debounce state.
func (b *Debouncer) Update() error {
	raw, err := b.pin.Pressed()
	if err != nil {
		return fmt.Errorf("button: read: %w", err)
	}
	now := b.now()

	if raw != b.lastRaw {
		b.lastRaw = raw
		b.lastChange = now
	}
	if now.Sub(b.lastChange) < b.debounce || raw == b.stable {
		return nil
	}

	b.stable = raw
	if raw {
		b.pressedFlag = true
		b.pressStart = now
		b.lastPress = now
		return nil
	}

	b.releasedFlag = true
	b.pressLength = now.Sub(b.pressStart)
	if now.Sub(b.lastClick) < b.clickWindow {
		b.clickCount++
		if b.clickCount >= 2 {
			b.doubleFlag = true
			b.clickCount = 0
		}
	} else {
		b.clickCount = 1
	}
	b.lastClick = now
	return nil
}

// WasPressed reports a press edge once.
func (b *Debouncer) WasPressed() bool {
	v := b.pressedFlag
	b.pressedFlag = false
	return v
}

// WasReleased reports a release edge once.
func (b *Debouncer) WasReleased() bool {
	v := b.releasedFlag
	b.releasedFlag = false
	return v
}

// WasDoubleClicked reports a double click once. A click count older than
// the window is discarded here rather than in Update.
func (b *Debouncer) WasDoubleClicked() bool {
	if b.now().Sub(b.lastClick) > b.clickWindow {
		b.clickCount = 0
	}
	v := b.doubleFlag
	b.doubleFlag = false
	return v
}

// IsPressed returns the debounced state.
func (b *Debouncer) IsPressed() bool { return b.stable }

// PressDuration returns how long the button has been held, or the length of
// the last press if it is released.
func (b *Debouncer) PressDuration() time.Duration {
	if b.stable {
		return b.now().Sub(b.pressStart)
	}
	return b.pressLength
}

// LastPressTime returns when the last debounced press began.
func (b *Debouncer) LastPressTime() time.Time { return b.lastPress }

// Reset clears pending edges and the click sequence.
func (b *Debouncer) Reset() {
	b.pressedFlag = false
	b.releasedFlag = false
	b.doubleFlag = false
	b.pressLength = 0
	b.clickCount = 0
}

// Close releases the pin.
func (b *Debouncer) Close() error {
	return b.pin.Close()
}
