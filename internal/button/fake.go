package button

import "sync"

// FakeReader is a PinReader whose state is set by the caller. It is used by
// tests and by the terminal-driven button used when no GPIO chip is
// configured.
type FakeReader struct {
	mu      sync.Mutex
	pressed bool
	err     error
	closed  bool
}

// NewFakeReader returns a released fake button.
func NewFakeReader() *FakeReader { return &FakeReader{} }

// Set changes the raw state the next Pressed call returns.
func (f *FakeReader) Set(pressed bool) {
	f.mu.Lock()
	f.pressed = pressed
	f.mu.Unlock()
}

// SetError makes Pressed fail with err until cleared with nil.
func (f *FakeReader) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *FakeReader) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pressed, f.err
}

func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeReader) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
