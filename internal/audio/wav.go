package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type wavDecoder struct {
	r        io.ReadSeeker
	dec      *wav.Decoder
	channels int
	depth    int
	rate     int
	ibuf     *goaudio.IntBuffer
}

func newWAVDecoder(r io.ReadSeeker) (*wavDecoder, error) {
	d := &wavDecoder{r: r}
	if err := d.open(); err != nil {
		return nil, err
	}
	switch d.channels {
	case 1, 2:
	default:
		return nil, fmt.Errorf("wav: %d channels not supported", d.channels)
	}
	switch d.depth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("wav: %d-bit samples not supported", d.depth)
	}
	return d, nil
}

func (d *wavDecoder) open() error {
	dec := wav.NewDecoder(d.r)
	if !dec.IsValidFile() {
		return errors.New("wav: not a valid RIFF/WAVE file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return fmt.Errorf("wav: seeking to pcm data: %w", err)
	}
	d.dec = dec
	d.channels = int(dec.NumChans)
	d.depth = int(dec.BitDepth)
	d.rate = int(dec.SampleRate)
	return nil
}

func (d *wavDecoder) SampleRate() int { return d.rate }

// Read fills dst with stereo frames. Mono input is duplicated.
func (d *wavDecoder) Read(dst []int16) (int, error) {
	frames := len(dst) / 2
	want := frames * d.channels
	if d.ibuf == nil || len(d.ibuf.Data) < want {
		d.ibuf = &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: d.channels, SampleRate: d.rate},
			Data:           make([]int, want),
			SourceBitDepth: d.depth,
		}
	}
	d.ibuf.Data = d.ibuf.Data[:want]

	n, err := d.dec.PCMBuffer(d.ibuf)
	if err != nil {
		return 0, fmt.Errorf("wav: read: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	// drop a trailing partial frame
	n -= n % d.channels

	if d.channels == 2 {
		for i := 0; i < n; i++ {
			dst[i] = d.to16(d.ibuf.Data[i])
		}
		return n, nil
	}
	for i := 0; i < n; i++ {
		s := d.to16(d.ibuf.Data[i])
		dst[2*i] = s
		dst[2*i+1] = s
	}
	return n * 2, nil
}

func (d *wavDecoder) to16(v int) int16 {
	switch d.depth {
	case 8:
		return sample8to16(byte(v))
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	}
	return int16(v)
}

// Rewind restarts decoding at the first sample.
func (d *wavDecoder) Rewind() error {
	if _, err := d.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav: rewind: %w", err)
	}
	return d.open()
}
