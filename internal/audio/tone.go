package audio

import (
	"math"
	"time"
)

// MaxToneAmplitude is the tone peak at volume 100.
const MaxToneAmplitude = 20000

// sine is a phase-continuous oscillator, so back-to-back bursts at the
// same frequency join without clicks.
type sine struct {
	phase float64
	step  float64
}

func newSine(freq, sampleRate int) *sine {
	return &sine{step: 2 * math.Pi * float64(freq) / float64(sampleRate)}
}

// fill writes len(dst)/2 stereo frames at the given peak amplitude.
func (s *sine) fill(dst []int16, amplitude float64) {
	for i := 0; i+1 < len(dst); i += 2 {
		v := int16(amplitude * math.Sin(s.phase))
		dst[i] = v
		dst[i+1] = v
		s.phase += s.step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
}

// Beep is one tone followed by silence.
type Beep struct {
	Freq int
	On   time.Duration
	Off  time.Duration
}

// Pattern is a repeating sequence of beeps.
type Pattern []Beep

// Period returns the length of one repetition.
func (p Pattern) Period() time.Duration {
	var d time.Duration
	for _, b := range p {
		d += b.On + b.Off
	}
	return d
}

// At returns the frequency sounding at elapsed time into the pattern, and
// false during silence.
func (p Pattern) At(elapsed time.Duration) (int, bool) {
	period := p.Period()
	if period <= 0 {
		return 0, false
	}
	t := elapsed % period
	for _, b := range p {
		if t < b.On {
			return b.Freq, true
		}
		t -= b.On
		if t < b.Off {
			return 0, false
		}
		t -= b.Off
	}
	return 0, false
}

var builtinTones = map[string]Pattern{
	"tone1": {
		{Freq: 1000, On: 200 * time.Millisecond, Off: 200 * time.Millisecond},
	},
	"tone2": {
		{Freq: 800, On: 250 * time.Millisecond},
		{Freq: 1200, On: 250 * time.Millisecond, Off: 250 * time.Millisecond},
	},
	"tone3": {
		{Freq: 2000, On: 100 * time.Millisecond, Off: 80 * time.Millisecond},
		{Freq: 2000, On: 100 * time.Millisecond, Off: 80 * time.Millisecond},
		{Freq: 2000, On: 100 * time.Millisecond, Off: 600 * time.Millisecond},
	},
}

// BuiltinTone returns the pattern for tone1, tone2 or tone3.
func BuiltinTone(name string) (Pattern, bool) {
	p, ok := builtinTones[name]
	return p, ok
}

// IsBuiltinTone reports whether name is a synthesized tone rather than a file.
func IsBuiltinTone(name string) bool {
	_, ok := builtinTones[name]
	return ok
}
