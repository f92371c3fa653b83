package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// Options configures a Coordinator.
type Options struct {
	SampleRate  int           // tone driver rate in Hz
	ChunkFrames int           // stereo frames written per step
	LockTimeout time.Duration // bound on waiting for the audio lock
	Volume      int           // initial volume 0-100
}

// DefaultOptions returns the settings the clock ships with.
func DefaultOptions() Options {
	return Options{
		SampleRate:  44100,
		ChunkFrames: 128,
		LockTimeout: time.Second,
		Volume:      70,
	}
}

// Coordinator owns the audio output and switches between tone, file and
// PCM playback. Play* and Stop* may be called from any goroutine; Loop is
// driven by a single decode goroutine (see Run).
//
// All fields below lock are guarded by it. lock is a one-slot channel so
// acquisition can be bounded by LockTimeout. Methods with a Locked suffix
// expect the caller to hold it and never acquire it themselves.
type Coordinator struct {
	hw    Hardware
	files FileSource
	opts  Options

	volume      atomic.Int32
	volumeDirty atomic.Bool
	modeView    atomic.Int32
	pathView    atomic.Pointer[string]

	lock chan struct{}

	mode      Mode
	owner     owner
	gen       uint64 // bumped on every transition so a running tone can see it was superseded
	gain      float64
	toneOut   Output
	toneRate  int
	streamOut Output
	buf       []int16

	file    io.ReadSeekCloser
	decoder Decoder
	looping bool

	pcm       []byte // borrowed from the caller, never copied
	pcmFormat pcmFormat
	pcmCursor int
}

// NewCoordinator returns an idle coordinator. No output is opened until
// something is played.
func NewCoordinator(hw Hardware, files FileSource, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}
	if opts.ChunkFrames <= 0 {
		opts.ChunkFrames = def.ChunkFrames
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = def.LockTimeout
	}
	c := &Coordinator{
		hw:    hw,
		files: files,
		opts:  opts,
		lock:  make(chan struct{}, 1),
		buf:   make([]int16, opts.ChunkFrames*2),
	}
	v := clampVolume(opts.Volume)
	c.volume.Store(int32(v))
	c.gain = float64(v) / 100
	empty := ""
	c.pathView.Store(&empty)
	return c
}

// ChunkBytes returns how many bytes of 16-bit stereo PCM one Loop step
// consumes.
func (c *Coordinator) ChunkBytes() int {
	return c.opts.ChunkFrames * 4
}

func (c *Coordinator) acquire() error {
	select {
	case c.lock <- struct{}{}:
		return nil
	default:
	}
	t := time.NewTimer(c.opts.LockTimeout)
	defer t.Stop()
	select {
	case c.lock <- struct{}{}:
		return nil
	case <-t.C:
		return ErrLockTimeout
	}
}

func (c *Coordinator) tryAcquire() bool {
	select {
	case c.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Coordinator) release() { <-c.lock }

func (c *Coordinator) setModeLocked(m Mode) {
	c.mode = m
	c.modeView.Store(int32(m))
}

func (c *Coordinator) setPathLocked(p string) {
	c.pathView.Store(&p)
}

// PlayTone plays a sine tone and blocks until it has been written or ctx
// is cancelled. Any file playback is torn down first. A tone that is
// superseded by another play or stop call returns early without error.
func (c *Coordinator) PlayTone(ctx context.Context, freq int, d time.Duration) error {
	if freq <= 0 || d <= 0 {
		return fmt.Errorf("audio: invalid tone %d Hz for %v", freq, d)
	}
	// A burst cancelled before it starts must not tear down a file.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.acquire(); err != nil {
		return err
	}
	if c.mode == ModeStreamingFile {
		c.teardownFileLocked()
	}
	c.pcm = nil
	if err := c.ensureToneLocked(c.opts.SampleRate); err != nil {
		c.setModeLocked(ModeIdle)
		c.release()
		return err
	}
	c.gen++
	gen := c.gen
	c.setModeLocked(ModeTone)
	rate := c.toneRate
	c.release()

	osc := newSine(freq, rate)
	chunk := make([]int16, c.opts.ChunkFrames*2)
	total := int(int64(d) * int64(rate) / int64(time.Second))

	for written := 0; written < total; {
		if err := ctx.Err(); err != nil {
			c.endTone(gen)
			return err
		}
		if err := c.acquire(); err != nil {
			return err
		}
		if c.gen != gen || c.toneOut == nil {
			c.release()
			return nil
		}
		frames := min(c.opts.ChunkFrames, total-written)
		osc.fill(chunk[:frames*2], c.toneAmplitude())
		err := c.toneOut.Write(chunk[:frames*2])
		c.release()
		if err != nil {
			c.endTone(gen)
			return fmt.Errorf("audio: tone write: %w", err)
		}
		written += frames
	}
	c.endTone(gen)
	return nil
}

func (c *Coordinator) endTone(gen uint64) {
	if err := c.acquire(); err != nil {
		return
	}
	if c.gen == gen && c.mode == ModeTone {
		c.setModeLocked(ModeIdle)
	}
	c.release()
}

func (c *Coordinator) toneAmplitude() float64 {
	return float64(c.volume.Load()) * MaxToneAmplitude / 100
}

// PlayFile starts decoding a WAV or MP3 file from the file source. On any
// failure the coordinator is left idle and the error wraps ErrFileNotFound,
// ErrUnsupportedFormat, ErrDecoder or ErrLockTimeout.
func (c *Coordinator) PlayFile(name string, loop bool) error {
	kind, err := formatOf(name)
	if err != nil {
		return err
	}
	if !c.files.Exists(name) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}

	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.teardownFileLocked()
	c.pcm = nil
	c.gen++
	c.setModeLocked(ModeIdle)

	f, err := c.files.Open(name)
	if err != nil {
		c.restoreToneLocked()
		return fmt.Errorf("%w: %s: %v", ErrFileNotFound, name, err)
	}
	dec, err := newDecoder(kind, f)
	if err != nil {
		f.Close()
		c.restoreToneLocked()
		return fmt.Errorf("%w: %s: %v", ErrDecoder, name, err)
	}

	// The stream takes the hardware from the tone driver.
	c.closeToneLocked()
	out, err := c.hw.OpenStream(dec.SampleRate())
	if err != nil {
		f.Close()
		c.restoreToneLocked()
		return fmt.Errorf("audio: open stream output: %w", err)
	}
	out.SetGain(c.gain)

	c.streamOut = out
	c.owner = ownerStream
	c.file = f
	c.decoder = dec
	c.looping = loop
	c.setPathLocked(name)
	c.setModeLocked(ModeStreamingFile)

	slog.Info("[AUDIO] playing file", "name", name, "loop", loop, "rate", dec.SampleRate())
	return nil
}

// PlayPCM plays a caller-owned buffer of unsigned 8-bit or signed 16-bit
// little-endian samples. The buffer is borrowed: the caller must not modify
// or reuse it until playback ends.
func (c *Coordinator) PlayPCM(buf []byte, sampleRate, bits, channels int) error {
	if bits != 8 && bits != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrInvalidFormat, bits)
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrInvalidFormat, channels)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, sampleRate)
	}
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty buffer", ErrInvalidFormat)
	}

	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.teardownFileLocked()
	if err := c.ensureToneLocked(sampleRate); err != nil {
		c.setModeLocked(ModeIdle)
		return err
	}
	c.gen++
	c.pcm = buf
	c.pcmCursor = 0
	c.pcmFormat = pcmFormat{rate: sampleRate, bits: bits, channels: channels}
	c.setPathLocked("")
	c.setModeLocked(ModePreloadedPCM)
	return nil
}

// StopFile ends file playback and hands the hardware back to the tone
// driver. It is a no-op when no file is playing.
func (c *Coordinator) StopFile() error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	if c.decoder == nil && c.mode != ModeStreamingFile {
		return nil
	}
	c.gen++
	c.teardownFileLocked()
	c.restoreToneLocked()
	return nil
}

// Stop ends any playback and leaves the tone driver ready.
func (c *Coordinator) Stop() error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	c.gen++
	c.teardownFileLocked()
	c.pcm = nil
	c.setModeLocked(ModeIdle)
	c.restoreToneLocked()
	return nil
}

// Close stops playback and releases every output.
func (c *Coordinator) Close() error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	c.gen++
	c.teardownFileLocked()
	c.pcm = nil
	c.setModeLocked(ModeIdle)
	return c.closeToneLocked()
}

// Loop advances playback by one step: it applies a pending volume change,
// then writes one PCM chunk or decodes one file chunk. It returns at once
// if another caller holds the lock.
func (c *Coordinator) Loop() {
	if !c.tryAcquire() {
		return
	}
	defer c.release()

	if c.volumeDirty.Swap(false) {
		c.applyVolumeLocked()
	}

	switch c.mode {
	case ModePreloadedPCM:
		c.stepPCMLocked()
	case ModeStreamingFile:
		c.stepFileLocked()
	}
}

// Run calls Loop every interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Loop()
		}
	}
}

func (c *Coordinator) stepPCMLocked() {
	fb := c.pcmFormat.frameBytes()
	end := min(c.pcmCursor+c.opts.ChunkFrames*fb, len(c.pcm))
	n := convertPCM(c.buf, c.pcm[c.pcmCursor:end], c.pcmFormat, c.gain)
	c.pcmCursor = end

	if n > 0 {
		if err := c.toneOut.Write(c.buf[:n]); err != nil {
			slog.Error("[AUDIO] pcm write failed", "error", err)
			c.finishPCMLocked()
			return
		}
	}
	if c.pcmCursor >= len(c.pcm) {
		c.finishPCMLocked()
	}
}

func (c *Coordinator) finishPCMLocked() {
	c.pcm = nil
	c.pcmCursor = 0
	c.setModeLocked(ModeIdle)
}

func (c *Coordinator) stepFileLocked() {
	n, err := c.decoder.Read(c.buf)
	if n > 0 {
		if werr := c.streamOut.Write(c.buf[:n]); werr != nil {
			slog.Error("[AUDIO] stream write failed", "name", c.currentPath(), "error", werr)
			c.teardownFileLocked()
			c.restoreToneLocked()
			return
		}
	}
	if err == nil {
		return
	}
	if errors.Is(err, io.EOF) {
		if c.looping {
			rerr := c.decoder.Rewind()
			if rerr == nil {
				return
			}
			slog.Error("[AUDIO] rewind failed", "name", c.currentPath(), "error", rerr)
		} else {
			slog.Debug("[AUDIO] file finished", "name", c.currentPath())
		}
	} else {
		slog.Error("[AUDIO] decode failed", "name", c.currentPath(), "error", err)
	}
	c.teardownFileLocked()
	c.restoreToneLocked()
}

func (c *Coordinator) currentPath() string {
	return *c.pathView.Load()
}

// teardownFileLocked releases the decoder, file and stream output. The
// hardware is left unowned.
func (c *Coordinator) teardownFileLocked() {
	if c.file != nil {
		if err := c.file.Close(); err != nil {
			slog.Warn("[AUDIO] closing sound file", "error", err)
		}
		c.file = nil
	}
	c.decoder = nil
	c.looping = false
	c.closeStreamLocked()
	c.setPathLocked("")
	if c.mode == ModeStreamingFile {
		c.setModeLocked(ModeIdle)
	}
}

func (c *Coordinator) closeStreamLocked() {
	if c.streamOut == nil {
		return
	}
	if err := c.streamOut.Close(); err != nil {
		slog.Warn("[AUDIO] closing stream output", "error", err)
	}
	c.streamOut = nil
	if c.owner == ownerStream {
		c.owner = ownerNone
	}
}

func (c *Coordinator) closeToneLocked() error {
	if c.toneOut == nil {
		return nil
	}
	err := c.toneOut.Close()
	c.toneOut = nil
	c.toneRate = 0
	if c.owner == ownerTone {
		c.owner = ownerNone
	}
	if err != nil {
		return fmt.Errorf("audio: close tone output: %w", err)
	}
	return nil
}

// ensureToneLocked makes the tone driver the hardware owner at rate.
func (c *Coordinator) ensureToneLocked(rate int) error {
	if c.owner == ownerTone && c.toneOut != nil {
		if c.toneRate != rate {
			if err := c.toneOut.SetSampleRate(rate); err != nil {
				return fmt.Errorf("audio: set tone rate %d: %w", rate, err)
			}
			c.toneRate = rate
		}
		return nil
	}
	c.closeStreamLocked()
	out, err := c.hw.OpenTone(rate)
	if err != nil {
		return fmt.Errorf("audio: open tone output: %w", err)
	}
	c.toneOut = out
	c.toneRate = rate
	c.owner = ownerTone
	return nil
}

func (c *Coordinator) restoreToneLocked() {
	if err := c.ensureToneLocked(c.opts.SampleRate); err != nil {
		slog.Warn("[AUDIO] tone driver unavailable", "error", err)
	}
}

func (c *Coordinator) applyVolumeLocked() {
	c.gain = float64(c.volume.Load()) / 100
	if c.streamOut != nil {
		c.streamOut.SetGain(c.gain)
	}
}

// SetVolume clamps v to 0-100 and schedules it for the next Loop. It
// returns the stored value.
func (c *Coordinator) SetVolume(v int) int {
	v = clampVolume(v)
	c.volume.Store(int32(v))
	c.volumeDirty.Store(true)
	return v
}

// Volume returns the current volume setting.
func (c *Coordinator) Volume() int {
	return int(c.volume.Load())
}

func clampVolume(v int) int {
	return max(0, min(100, v))
}

// Mode returns the current playback mode.
func (c *Coordinator) Mode() Mode {
	return Mode(c.modeView.Load())
}

// IsPlaying reports whether any playback is active.
func (c *Coordinator) IsPlaying() bool {
	return c.Mode() != ModeIdle
}

// CurrentFile returns the name of the file being played, or "".
func (c *Coordinator) CurrentFile() string {
	return c.currentPath()
}
