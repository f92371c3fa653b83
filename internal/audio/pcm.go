package audio

import "encoding/binary"

// pcmFormat describes a caller-supplied PCM buffer.
type pcmFormat struct {
	rate     int
	bits     int
	channels int
}

func (f pcmFormat) frameBytes() int {
	return f.channels * f.bits / 8
}

// sample8to16 widens an unsigned 8-bit sample to signed 16-bit.
func sample8to16(b byte) int16 {
	return int16(int(b)-128) << 8
}

// convertPCM decodes whole frames from src into dst as 16-bit stereo,
// scaling by gain. It returns the number of int16 values written.
// dst must hold 2 values per source frame.
func convertPCM(dst []int16, src []byte, f pcmFormat, gain float64) int {
	fb := f.frameBytes()
	n := 0
	for off := 0; off+fb <= len(src); off += fb {
		var l, r int16
		switch f.bits {
		case 8:
			l = sample8to16(src[off])
			r = l
			if f.channels == 2 {
				r = sample8to16(src[off+1])
			}
		case 16:
			l = int16(binary.LittleEndian.Uint16(src[off:]))
			r = l
			if f.channels == 2 {
				r = int16(binary.LittleEndian.Uint16(src[off+2:]))
			}
		}
		dst[n] = scale(l, gain)
		dst[n+1] = scale(r, gain)
		n += 2
	}
	return n
}

func scale(s int16, gain float64) int16 {
	if gain >= 1 {
		return s
	}
	return int16(float64(s) * gain)
}
