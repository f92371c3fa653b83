package frontlight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SysfsPWM drives a channel of a Linux sysfs PWM chip.
type SysfsPWM struct {
	dir    string
	period time.Duration
}

// SysfsRoot is where PWM chips are exposed.
var SysfsRoot = "/sys/class/pwm"

// OpenSysfsPWM exports channel on chip and enables it with the given
// period.
func OpenSysfsPWM(chip, channel int, period time.Duration) (*SysfsPWM, error) {
	if period <= 0 {
		return nil, fmt.Errorf("frontlight: invalid pwm period %v", period)
	}
	chipDir := filepath.Join(SysfsRoot, fmt.Sprintf("pwmchip%d", chip))
	dir := filepath.Join(chipDir, fmt.Sprintf("pwm%d", channel))

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := writeAttr(filepath.Join(chipDir, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("frontlight: exporting pwm%d: %w", channel, err)
		}
	}
	p := &SysfsPWM{dir: dir, period: period}
	if err := writeAttr(filepath.Join(dir, "period"), strconv.FormatInt(period.Nanoseconds(), 10)); err != nil {
		return nil, fmt.Errorf("frontlight: setting period: %w", err)
	}
	if err := writeAttr(filepath.Join(dir, "enable"), "1"); err != nil {
		return nil, fmt.Errorf("frontlight: enabling pwm: %w", err)
	}
	return p, nil
}

// SetDuty sets the duty cycle as a fraction duty/255 of the period.
func (p *SysfsPWM) SetDuty(duty uint8) error {
	ns := p.period.Nanoseconds() * int64(duty) / 255
	return writeAttr(filepath.Join(p.dir, "duty_cycle"), strconv.FormatInt(ns, 10))
}

// Close disables the channel.
func (p *SysfsPWM) Close() error {
	return writeAttr(filepath.Join(p.dir, "enable"), "0")
}

func writeAttr(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}

// NopPWM is used when no frontlight hardware is configured.
type NopPWM struct{}

func (NopPWM) SetDuty(uint8) error { return nil }
func (NopPWM) Close() error        { return nil }
