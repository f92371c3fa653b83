// Package alarm holds the alarm records, their persistence, and the engine
// that decides when an alarm rings, snoozes, and is dismissed.
package alarm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxAlarms is the number of alarm slots. Valid IDs are 0..MaxAlarms-1.
	MaxAlarms = 10

	// NoAlarm is returned by RingingID when nothing is ringing.
	NoAlarm = -1

	// DefaultLabel is used for records written before labels existed.
	DefaultLabel = "Alarm"

	// DefaultSound rings when an alarm's own sound is missing or unusable.
	DefaultSound = "tone1"
)

// Weekdays is a day-of-week bitmask, bit 0 = Sunday. Zero means one-shot.
type Weekdays uint8

const (
	Sunday Weekdays = 1 << iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday

	Once     Weekdays = 0
	Workdays          = Monday | Tuesday | Wednesday | Thursday | Friday
	Weekends          = Saturday | Sunday
	Everyday          = Workdays | Weekends
)

var dayNames = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// Has reports whether day is set.
func (w Weekdays) Has(day time.Weekday) bool {
	return day >= time.Sunday && day <= time.Saturday && w&(1<<uint(day)) != 0
}

// OneShot reports whether the mask is the one-shot sentinel.
func (w Weekdays) OneShot() bool { return w == Once }

func (w Weekdays) String() string {
	switch w {
	case Once:
		return "once"
	case Everyday:
		return "daily"
	case Workdays:
		return "weekdays"
	case Weekends:
		return "weekends"
	}
	var names []string
	for i, n := range dayNames {
		if w&(1<<uint(i)) != 0 {
			names = append(names, n)
		}
	}
	return strings.Join(names, ",")
}

// ParseWeekdays accepts the forms produced by String ("once", "daily",
// "weekdays", "weekends", "mon,wed") or a decimal mask.
func ParseWeekdays(s string) (Weekdays, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "once", "":
		return Once, nil
	case "daily":
		return Everyday, nil
	case "weekdays":
		return Workdays, nil
	case "weekends":
		return Weekends, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > int(Everyday) {
			return 0, fmt.Errorf("day mask %d out of range 0-127", n)
		}
		return Weekdays(n), nil
	}
	var w Weekdays
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		found := false
		for i, n := range dayNames {
			if part == n {
				w |= 1 << uint(i)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown day %q", part)
		}
	}
	return w, nil
}

// Record is one configured alarm.
type Record struct {
	ID                  int      `json:"id"`
	Hour                int      `json:"hour"`
	Minute              int      `json:"minute"`
	Days                Weekdays `json:"days"`
	Enabled             bool     `json:"enabled"`
	Sound               string   `json:"sound"`
	Label               string   `json:"label"`
	SnoozeEnabled       bool     `json:"snooze"`
	PermanentlyDisabled bool     `json:"permanentlyDisabled"`
	BottomRowLabel      string   `json:"bottomRowLabel"`
}

// Eligible reports whether the record may trigger at all.
func (r Record) Eligible() bool {
	return r.Enabled && !r.PermanentlyDisabled
}

// Matches reports whether the record's schedule matches the given time.
// Eligibility is checked separately.
func (r Record) Matches(hour, minute int, day time.Weekday) bool {
	if r.Hour != hour || r.Minute != minute {
		return false
	}
	return r.Days.OneShot() || r.Days.Has(day)
}

// TimeString formats the trigger time as HH:MM.
func (r Record) TimeString() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

// ErrInvalidRecord is wrapped by Validate failures.
var ErrInvalidRecord = errors.New("invalid alarm record")

// Validate checks field ranges and the characters the storage encoding
// cannot carry.
func (r Record) Validate() error {
	switch {
	case r.ID < 0 || r.ID >= MaxAlarms:
		return fmt.Errorf("%w: id %d", ErrInvalidID, r.ID)
	case r.Hour < 0 || r.Hour > 23:
		return fmt.Errorf("%w: hour %d", ErrInvalidRecord, r.Hour)
	case r.Minute < 0 || r.Minute > 59:
		return fmt.Errorf("%w: minute %d", ErrInvalidRecord, r.Minute)
	case r.Days > Everyday:
		return fmt.Errorf("%w: day mask %d", ErrInvalidRecord, r.Days)
	case r.Sound == "":
		return fmt.Errorf("%w: empty sound", ErrInvalidRecord)
	case strings.ContainsAny(r.Sound, ",\n"):
		return fmt.Errorf("%w: sound %q contains a separator", ErrInvalidRecord, r.Sound)
	case strings.ContainsAny(r.Label, ",\n"):
		return fmt.Errorf("%w: label %q contains a separator", ErrInvalidRecord, r.Label)
	case strings.Contains(r.BottomRowLabel, "\n"):
		return fmt.Errorf("%w: bottom label contains a newline", ErrInvalidRecord)
	}
	return nil
}
