package audio

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

type fakeOutput struct {
	kind string

	mu      sync.Mutex
	rate    int
	gain    float64
	written []int16
	writes  int
	closed  bool
	failErr error
	delay   time.Duration
}

func (o *fakeOutput) Write(s []int16) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errOutputClosed
	}
	if o.failErr != nil {
		return o.failErr
	}
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	o.written = append(o.written, s...)
	o.writes++
	return nil
}

func (o *fakeOutput) SetSampleRate(rate int) error {
	o.mu.Lock()
	o.rate = rate
	o.mu.Unlock()
	return nil
}

func (o *fakeOutput) SetGain(g float64) {
	o.mu.Lock()
	o.gain = g
	o.mu.Unlock()
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

func (o *fakeOutput) samples() []int16 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int16(nil), o.written...)
}

// fakeHardware enforces the single-owner rule: opening a path while the
// other one is still open is an error.
type fakeHardware struct {
	mu         sync.Mutex
	outputs    []*fakeOutput
	failOpen   bool
	writeDelay time.Duration
}

var errBusy = errors.New("output already open")

func (h *fakeHardware) open(kind string, rate int) (Output, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failOpen {
		return nil, errors.New("no device")
	}
	for _, o := range h.outputs {
		if !o.closed {
			return nil, errBusy
		}
	}
	o := &fakeOutput{kind: kind, rate: rate, gain: 1, delay: h.writeDelay}
	h.outputs = append(h.outputs, o)
	return o, nil
}

func (h *fakeHardware) OpenTone(rate int) (Output, error)   { return h.open("tone", rate) }
func (h *fakeHardware) OpenStream(rate int) (Output, error) { return h.open("stream", rate) }

// last returns the most recently opened output.
func (h *fakeHardware) last() *fakeOutput {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.outputs) == 0 {
		return nil
	}
	return h.outputs[len(h.outputs)-1]
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

type memFiles map[string][]byte

func (m memFiles) Exists(name string) bool {
	_, ok := m[name]
	return ok
}

func (m memFiles) Open(name string) (io.ReadSeekCloser, error) {
	b, ok := m[name]
	if !ok {
		return nil, errors.New("missing")
	}
	return nopCloser{bytes.NewReader(b)}, nil
}
