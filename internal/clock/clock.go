// Package clock keeps wall time for the device as an offset from the host
// clock, so it can be set over BLE without touching the system time.
package clock

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DateTimeLayout formats datetimes the way the datetime characteristic
// expects them.
const DateTimeLayout = "2006-01-02 15:04:05"

// Clock is safe for concurrent use.
type Clock struct {
	mu       sync.RWMutex
	offset   time.Duration
	loc      *time.Location
	synced   bool
	syncedAt time.Time
	now      func() time.Time
}

// Option configures a Clock.
type Option func(*Clock)

// WithLocation sets the zone used for display and alarm matching.
func WithLocation(loc *time.Location) Option {
	return func(c *Clock) { c.loc = loc }
}

// WithSource replaces the host clock, for tests.
func WithSource(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// New returns an unsynced clock reading 2026-01-01 00:00:00.
func New(opts ...Option) *Clock {
	c := &Clock{loc: time.Local, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	epoch := time.Date(2026, time.January, 1, 0, 0, 0, 0, c.loc)
	c.offset = epoch.Sub(c.now())
	return c
}

// Now returns the device time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Add(c.offset).In(c.loc)
}

// Fields returns the parts the alarm engine matches on.
func (c *Clock) Fields() (hour, minute, second int, day time.Weekday) {
	t := c.Now()
	return t.Hour(), t.Minute(), t.Second(), t.Weekday()
}

// Timestamp returns the device time as unix seconds.
func (c *Clock) Timestamp() int64 {
	return c.Now().Unix()
}

// Set moves the clock to t and marks it synced.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	host := c.now()
	c.offset = t.Sub(host)
	c.synced = true
	c.syncedAt = host
	c.mu.Unlock()
	slog.Info("[CLOCK] time set", "time", t.In(c.loc).Format(DateTimeLayout))
}

// SetTimestamp sets the clock from unix seconds.
func (c *Clock) SetTimestamp(ts int64) {
	c.Set(time.Unix(ts, 0))
}

// SetTimestampBytes sets the clock from a little-endian uint32 unix
// timestamp, as written to the time characteristic. Bytes past the
// fourth are ignored.
func (c *Clock) SetTimestampBytes(b []byte) error {
	if len(b) < 4 {
		return fmt.Errorf("clock: timestamp needs 4 bytes, got %d", len(b))
	}
	c.SetTimestamp(int64(binary.LittleEndian.Uint32(b)))
	return nil
}

// SetDateTime sets the clock from "YYYY-MM-DD HH:MM:SS" in the clock's
// zone. Fields need not be zero padded.
func (c *Clock) SetDateTime(s string) error {
	t, err := ParseDateTime(s, c.loc)
	if err != nil {
		return err
	}
	c.Set(t)
	return nil
}

// ParseDateTime parses the datetime characteristic format.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	var year, month, day, hour, minute, second int
	n, err := fmt.Sscanf(strings.TrimSpace(s), "%d-%d-%d %d:%d:%d", &year, &month, &day, &hour, &minute, &second)
	if err != nil || n != 6 {
		return time.Time{}, fmt.Errorf("clock: invalid datetime %q, want YYYY-MM-DD HH:MM:SS", s)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, fmt.Errorf("clock: datetime %q out of range", s)
	}
	return t, nil
}

// SetTime changes the time of day and keeps the date.
func (c *Clock) SetTime(hour, minute, second int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return fmt.Errorf("clock: invalid time %02d:%02d:%02d", hour, minute, second)
	}
	t := c.Now()
	c.Set(time.Date(t.Year(), t.Month(), t.Day(), hour, minute, second, 0, c.loc))
	return nil
}

// SetDate changes the date and keeps the time of day.
func (c *Clock) SetDate(year int, month time.Month, day int) error {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return fmt.Errorf("clock: invalid date %04d-%02d-%02d", year, month, day)
	}
	t := c.Now()
	c.Set(time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), 0, c.loc))
	return nil
}

// IsSynced reports whether the clock was ever set.
func (c *Clock) IsSynced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// SinceSync returns the host time elapsed since the last set, or zero.
func (c *Clock) SinceSync() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.synced {
		return 0
	}
	return c.now().Sub(c.syncedAt)
}

// TimeString formats the time of day as "15:04" or "3:04 PM".
func (c *Clock) TimeString(h12 bool) string {
	return FormatTime(c.Now(), h12)
}

// FormatTime formats t the way TimeString does.
func FormatTime(t time.Time, h12 bool) string {
	if h12 {
		return t.Format("3:04 PM")
	}
	return t.Format("15:04")
}

// DateString formats the date as "Jan 2, 2006".
func (c *Clock) DateString() string {
	return c.Now().Format("Jan 2, 2006")
}

// WeekdayString returns the full weekday name.
func (c *Clock) WeekdayString() string {
	return c.Now().Weekday().String()
}
