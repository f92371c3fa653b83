package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

var errOutputClosed = errors.New("audio: output closed")

// MalgoHardware opens playback devices on the default output through
// miniaudio. Call Close when done.
type MalgoHardware struct {
	ctx          *malgo.AllocatedContext
	bufferFrames int
}

// NewMalgoHardware initializes the audio context. bufferFrames sizes each
// output's queue; writers block once it is full.
func NewMalgoHardware(bufferFrames int) (*MalgoHardware, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	if bufferFrames <= 0 {
		bufferFrames = 2048
	}
	return &MalgoHardware{ctx: ctx, bufferFrames: bufferFrames}, nil
}

// OpenTone opens the raw output used for tones and PCM buffers. Software
// gain is fixed at 1; tone amplitude already carries the volume.
func (h *MalgoHardware) OpenTone(sampleRate int) (Output, error) {
	return h.open(sampleRate, false)
}

// OpenStream opens the output used for decoded files.
func (h *MalgoHardware) OpenStream(sampleRate int) (Output, error) {
	return h.open(sampleRate, true)
}

func (h *MalgoHardware) open(sampleRate int, gainEnabled bool) (*malgoOutput, error) {
	o := &malgoOutput{
		ctx:         h.ctx,
		ring:        newSampleRing(h.bufferFrames * 2),
		gain:        1,
		gainEnabled: gainEnabled,
	}
	o.cond = sync.NewCond(&o.mu)
	if err := o.start(sampleRate); err != nil {
		return nil, err
	}
	return o, nil
}

// Close releases the audio context. Outputs must be closed first.
func (h *MalgoHardware) Close() error {
	if h.ctx == nil {
		return nil
	}
	if err := h.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninitializing audio context: %w", err)
	}
	h.ctx.Free()
	h.ctx = nil
	return nil
}

// malgoOutput feeds a playback device from a bounded sample queue. Write
// blocks while the queue is full; the device callback drains it and pads
// with silence on underrun.
type malgoOutput struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu          sync.Mutex
	cond        *sync.Cond
	ring        *sampleRing
	gain        float64
	gainEnabled bool
	closed      bool
}

func (o *malgoOutput) start(sampleRate int) error {
	deviceCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceCfg.Playback.Format = malgo.FormatS16
	deviceCfg.Playback.Channels = 2
	deviceCfg.SampleRate = uint32(sampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: o.onData,
	}

	device, err := malgo.InitDevice(o.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		return fmt.Errorf("initializing playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("starting playback device: %w", err)
	}

	o.mu.Lock()
	o.device = device
	o.mu.Unlock()
	return nil
}

func (o *malgoOutput) Write(samples []int16) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(samples) > 0 {
		if o.closed {
			return errOutputClosed
		}
		n := o.ring.push(samples)
		samples = samples[n:]
		if len(samples) > 0 {
			o.cond.Wait()
		}
	}
	return nil
}

// SetSampleRate restarts the device at a new rate, discarding queued audio.
func (o *malgoOutput) SetSampleRate(rate int) error {
	o.mu.Lock()
	dev := o.device
	o.device = nil
	o.ring.reset()
	o.mu.Unlock()

	if dev != nil {
		dev.Uninit()
	}
	if err := o.start(rate); err != nil {
		o.mu.Lock()
		o.closed = true
		o.cond.Broadcast()
		o.mu.Unlock()
		return err
	}
	return nil
}

func (o *malgoOutput) SetGain(g float64) {
	o.mu.Lock()
	o.gain = max(0, min(1, g))
	o.mu.Unlock()
}

func (o *malgoOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	dev := o.device
	o.device = nil
	o.cond.Broadcast()
	o.mu.Unlock()

	if dev != nil {
		dev.Uninit()
	}
	return nil
}

// onData is the malgo callback asking for frameCount stereo S16 frames.
func (o *malgoOutput) onData(pOutput, _ []byte, frameCount uint32) {
	want := int(frameCount) * 2

	o.mu.Lock()
	gain := 1.0
	if o.gainEnabled {
		gain = o.gain
	}
	for i := 0; i < want; i++ {
		s, ok := o.ring.pop()
		if !ok {
			clear(pOutput[i*2:])
			break
		}
		if gain < 1 {
			s = int16(math.Round(float64(s) * gain))
		}
		binary.LittleEndian.PutUint16(pOutput[i*2:], uint16(s))
	}
	o.cond.Broadcast()
	o.mu.Unlock()
}

// sampleRing is a fixed-capacity FIFO of int16 samples. Not synchronized.
type sampleRing struct {
	data       []int16
	head, size int
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{data: make([]int16, capacity)}
}

// push copies as many samples as fit and returns the count.
func (r *sampleRing) push(s []int16) int {
	n := 0
	for n < len(s) && r.size < len(r.data) {
		r.data[(r.head+r.size)%len(r.data)] = s[n]
		r.size++
		n++
	}
	return n
}

func (r *sampleRing) pop() (int16, bool) {
	if r.size == 0 {
		return 0, false
	}
	s := r.data[r.head]
	r.head = (r.head + 1) % len(r.data)
	r.size--
	return s, true
}

func (r *sampleRing) buffered() int { return r.size }

func (r *sampleRing) reset() {
	r.head = 0
	r.size = 0
}
