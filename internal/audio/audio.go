// Package audio plays alarm sounds: synthesized tones, WAV/MP3 files decoded
// incrementally, and caller-owned PCM buffers. The Coordinator owns every
// decoder and output handle and switches between them under one lock.
package audio

import (
	"errors"
	"io"
)

// Mode is the coordinator's playback mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModeTone
	ModeStreamingFile
	ModePreloadedPCM
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeTone:
		return "tone"
	case ModeStreamingFile:
		return "file"
	case ModePreloadedPCM:
		return "pcm"
	}
	return "unknown"
}

// owner tags which output path currently holds the hardware.
type owner int

const (
	ownerNone owner = iota
	ownerTone
	ownerStream
)

func (o owner) String() string {
	switch o {
	case ownerTone:
		return "tone"
	case ownerStream:
		return "stream"
	}
	return "none"
}

var (
	ErrFileNotFound      = errors.New("audio: file not found")
	ErrUnsupportedFormat = errors.New("audio: unsupported file format")
	ErrInvalidFormat     = errors.New("audio: invalid pcm format")
	ErrLockTimeout       = errors.New("audio: timed out waiting for audio lock")
	ErrDecoder           = errors.New("audio: decoder init failed")
)

// Output accepts interleaved 16-bit stereo samples.
type Output interface {
	// Write queues samples, blocking while the device buffer is full.
	Write(samples []int16) error
	SetSampleRate(rate int) error
	// SetGain scales samples by g in [0, 1].
	SetGain(g float64)
	Close() error
}

// Hardware opens the two mutually exclusive output paths: the raw driver
// used for tones and PCM buffers, and the buffered stream used for decoded
// files. At most one is open at a time.
type Hardware interface {
	OpenTone(sampleRate int) (Output, error)
	OpenStream(sampleRate int) (Output, error)
}

// FileSource resolves sound names to readable files.
type FileSource interface {
	Exists(name string) bool
	Open(name string) (io.ReadSeekCloser, error)
}

// Decoder produces interleaved 16-bit stereo samples from a container.
type Decoder interface {
	// Read fills dst and returns io.EOF once the stream is exhausted.
	Read(dst []int16) (int, error)
	SampleRate() int
	Rewind() error
}
