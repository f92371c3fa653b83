package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// mp3Decoder wraps go-mp3, which always yields 16-bit little-endian stereo.
type mp3Decoder struct {
	dec *mp3.Decoder
	raw []byte
}

func newMP3Decoder(r io.ReadSeeker) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) SampleRate() int { return d.dec.SampleRate() }

func (d *mp3Decoder) Read(dst []int16) (int, error) {
	need := len(dst) * 2
	if cap(d.raw) < need {
		d.raw = make([]byte, need)
	}
	d.raw = d.raw[:need]

	n, err := io.ReadFull(d.dec, d.raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(d.raw[2*i:]))
	}
	switch err {
	case nil:
		return samples, nil
	case io.ErrUnexpectedEOF, io.EOF:
		return samples, io.EOF
	}
	return samples, fmt.Errorf("mp3: read: %w", err)
}

func (d *mp3Decoder) Rewind() error {
	if _, err := d.dec.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("mp3: rewind: %w", err)
	}
	return nil
}
