// Package frontlight controls the display frontlight brightness.
package frontlight

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/bedclock/internal/kv"
)

// DefaultBrightness is used when nothing is stored and when turning on a
// light whose saved brightness is zero.
const DefaultBrightness = 50

// PrefKey is the settings key holding the brightness percentage.
const PrefKey = "brightness"

// PWM drives the light. Duty is 0-255.
type PWM interface {
	SetDuty(duty uint8) error
	Close() error
}

// Manager tracks brightness and on/off state. It is safe for concurrent use.
type Manager struct {
	pwm   PWM
	prefs *kv.Prefs

	mu         sync.Mutex
	brightness int
	saved      int
	on         bool
}

// NewManager restores the stored brightness, if any, and applies it.
// prefs may be nil.
func NewManager(pwm PWM, prefs *kv.Prefs) (*Manager, error) {
	m := &Manager{pwm: pwm, prefs: prefs, brightness: DefaultBrightness}
	if prefs != nil {
		m.brightness = min(100, int(prefs.GetByte(PrefKey, DefaultBrightness)))
	}
	m.saved = m.brightness
	m.on = m.brightness > 0
	if err := m.apply(); err != nil {
		return nil, err
	}
	return m, nil
}

// DutyFor converts a 0-100 percentage to a PWM duty value.
func DutyFor(percent int) uint8 {
	percent = max(0, min(100, percent))
	return uint8(percent * 255 / 100)
}

func (m *Manager) apply() error {
	if err := m.pwm.SetDuty(DutyFor(m.brightness)); err != nil {
		return fmt.Errorf("frontlight: set duty: %w", err)
	}
	return nil
}

// SetBrightness sets and persists the brightness. Zero turns the light off.
func (m *Manager) SetBrightness(percent int) error {
	percent = max(0, min(100, percent))
	m.mu.Lock()
	m.brightness = percent
	m.saved = percent
	m.on = percent > 0
	err := m.apply()
	m.mu.Unlock()
	if err != nil {
		return err
	}
	slog.Info("[LIGHT] brightness set", "percent", percent)
	if m.prefs != nil {
		if err := m.prefs.PutByte(PrefKey, byte(percent)); err != nil {
			return fmt.Errorf("frontlight: persisting brightness: %w", err)
		}
	}
	return nil
}

// Brightness returns the current output level, 0 when off.
func (m *Manager) Brightness() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brightness
}

// On restores the saved brightness.
func (m *Manager) On() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == 0 {
		m.saved = DefaultBrightness
	}
	m.brightness = m.saved
	m.on = true
	return m.apply()
}

// Off darkens the light and remembers the current brightness.
func (m *Manager) Off() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.on {
		m.saved = m.brightness
	}
	m.brightness = 0
	m.on = false
	return m.apply()
}

// Toggle switches between On and Off.
func (m *Manager) Toggle() error {
	if m.IsOn() {
		return m.Off()
	}
	return m.On()
}

// IsOn reports whether the light is lit.
func (m *Manager) IsOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.on
}

// Close turns the light off and releases the PWM.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pwm.SetDuty(0)
	return m.pwm.Close()
}
