package alarm

import (
	"log/slog"
	"sync"
	"time"
)

// State is the engine's ringing state.
type State int

const (
	Idle State = iota
	Ringing
	Snoozed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ringing:
		return "ringing"
	case Snoozed:
		return "snoozed"
	}
	return "unknown"
}

// Ringer starts the audible part of an alarm. Ring is called without any
// engine lock held and must return quickly.
type Ringer interface {
	Ring(id int)
}

// RingerFunc adapts a function to Ringer.
type RingerFunc func(id int)

func (f RingerFunc) Ring(id int) { f(id) }

// EventKind identifies an engine transition.
type EventKind int

const (
	EventRing EventKind = iota
	EventSnooze
	EventDismiss
)

func (k EventKind) String() string {
	switch k {
	case EventRing:
		return "ring"
	case EventSnooze:
		return "snooze"
	case EventDismiss:
		return "dismiss"
	}
	return "unknown"
}

// Event describes a transition, delivered to the observer after the engine
// has released its lock.
type Event struct {
	Kind    EventKind
	AlarmID int
	// Resumed is set on EventRing when a snoozed alarm rings again.
	Resumed bool
	// Hour and Minute hold the snooze target on EventSnooze.
	Hour, Minute int
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnooze sets the snooze length. Values under a minute are ignored.
func WithSnooze(d time.Duration) Option {
	return func(e *Engine) {
		if d >= time.Minute {
			e.snooze = d
		}
	}
}

// WithClock sets the time source used to compute the snooze target.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithObserver registers a function that receives every transition.
func WithObserver(fn func(Event)) Option {
	return func(e *Engine) { e.observer = fn }
}

// Engine evaluates the alarm schedule and runs the idle/ringing/snoozed
// state machine. CheckAlarms, Snooze and Dismiss are meant to be called
// from the main loop; the query methods are safe from any goroutine.
type Engine struct {
	store    *Store
	ringer   Ringer
	observer func(Event)
	now      func() time.Time
	snooze   time.Duration

	mu                sync.Mutex
	ringingID         int
	ringing           bool
	snoozed           bool
	snoozeHour        int
	snoozeMinute      int
	lastCheckedMinute int
}

// NewEngine returns an idle engine over store. ringer may be nil.
func NewEngine(store *Store, ringer Ringer, opts ...Option) *Engine {
	e := &Engine{
		store:             store,
		ringer:            ringer,
		now:               time.Now,
		snooze:            5 * time.Minute,
		ringingID:         NoAlarm,
		lastCheckedMinute: -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckAlarms evaluates the schedule for the given wall-clock minute. It
// does nothing if minute equals the previously checked minute, so calling
// it every second is fine. It reports whether an alarm started ringing.
func (e *Engine) CheckAlarms(hour, minute int, day time.Weekday) bool {
	e.mu.Lock()
	if minute == e.lastCheckedMinute {
		e.mu.Unlock()
		return false
	}
	e.lastCheckedMinute = minute

	if e.snoozed && hour == e.snoozeHour && minute == e.snoozeMinute {
		e.snoozed = false
		e.ringing = true
		id := e.ringingID
		e.mu.Unlock()

		slog.Info("[ALARM] snoozed alarm ringing again", "id", id)
		e.fire(Event{Kind: EventRing, AlarmID: id, Resumed: true})
		return true
	}

	for _, rec := range e.store.All() {
		if !rec.Eligible() || !rec.Matches(hour, minute, day) {
			continue
		}

		if rec.Days.OneShot() {
			// Disable before ringing so a restart mid-ring cannot re-fire it.
			if err := e.store.MarkFired(rec.ID); err != nil {
				slog.Error("[ALARM] could not persist one-shot disable", "id", rec.ID, "error", err)
			} else {
				slog.Info("[ALARM] one-shot alarm permanently disabled", "id", rec.ID)
			}
		}

		e.ringing = true
		e.snoozed = false
		e.ringingID = rec.ID
		e.mu.Unlock()

		slog.Info("[ALARM] triggered", "id", rec.ID, "time", rec.TimeString(), "sound", rec.Sound, "label", rec.Label)
		e.fire(Event{Kind: EventRing, AlarmID: rec.ID})
		return true
	}

	e.mu.Unlock()
	return false
}

// Snooze defers the ringing alarm by the snooze length. It is a no-op
// unless an alarm is ringing, and reports whether it snoozed.
func (e *Engine) Snooze() bool {
	e.mu.Lock()
	if !e.ringing {
		e.mu.Unlock()
		return false
	}

	now := e.now()
	total := now.Hour()*60 + now.Minute() + int(e.snooze/time.Minute)
	e.snoozeHour = (total / 60) % 24
	e.snoozeMinute = total % 60
	e.ringing = false
	e.snoozed = true
	ev := Event{Kind: EventSnooze, AlarmID: e.ringingID, Hour: e.snoozeHour, Minute: e.snoozeMinute}
	e.mu.Unlock()

	slog.Info("[ALARM] snoozed", "id", ev.AlarmID, "until", hhmm(ev.Hour, ev.Minute))
	e.notify(ev)
	return true
}

// Dismiss returns the engine to idle from any state.
func (e *Engine) Dismiss() {
	e.mu.Lock()
	wasActive := e.ringing || e.snoozed
	id := e.ringingID
	e.ringing = false
	e.snoozed = false
	e.ringingID = NoAlarm
	e.mu.Unlock()

	if wasActive {
		slog.Info("[ALARM] dismissed", "id", id)
		e.notify(Event{Kind: EventDismiss, AlarmID: id})
	}
}

// IsRinging reports whether an alarm is ringing.
func (e *Engine) IsRinging() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ringing
}

// IsSnoozed reports whether a snooze is pending.
func (e *Engine) IsSnoozed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snoozed
}

// RingingID returns the ringing (or snoozed) alarm's ID, or NoAlarm.
func (e *Engine) RingingID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ringingID
}

// RingingSound returns the ringing alarm's sound. It returns "" when nothing
// is ringing and DefaultSound when the ringing alarm no longer exists.
func (e *Engine) RingingSound() string {
	e.mu.Lock()
	ringing, id := e.ringing, e.ringingID
	e.mu.Unlock()

	if !ringing {
		return ""
	}
	if rec, ok := e.store.Get(id); ok {
		return rec.Sound
	}
	return DefaultSound
}

// SnoozeTarget returns the time a snoozed alarm will ring again.
func (e *Engine) SnoozeTarget() (hour, minute int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snoozeHour, e.snoozeMinute, e.snoozed
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.ringing:
		return Ringing
	case e.snoozed:
		return Snoozed
	}
	return Idle
}

// HasEnabledAlarm reports whether any alarm is enabled.
func (e *Engine) HasEnabledAlarm() bool {
	return e.store.HasEnabled()
}

func (e *Engine) fire(ev Event) {
	e.notify(ev)
	if e.ringer != nil {
		e.ringer.Ring(ev.AlarmID)
	}
}

func (e *Engine) notify(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

func hhmm(h, m int) string {
	return time.Date(0, 1, 1, h, m, 0, 0, time.UTC).Format("15:04")
}
