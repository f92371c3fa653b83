// Package app runs the clock: one loop goroutine that owns the alarm
// engine, polls the button, renders the face and serves BLE commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/bedclock/internal/alarm"
	"github.com/chaz8081/bedclock/internal/audio"
	"github.com/chaz8081/bedclock/internal/button"
	"github.com/chaz8081/bedclock/internal/clock"
	"github.com/chaz8081/bedclock/internal/display"
	"github.com/chaz8081/bedclock/internal/files"
	"github.com/chaz8081/bedclock/internal/frontlight"
	"github.com/chaz8081/bedclock/internal/kv"
	"github.com/chaz8081/bedclock/internal/mqtt"
)

// SettingsNamespace holds the persisted volume and brightness.
const SettingsNamespace = "settings"

const prefVolume = "volume"

var (
	// ErrStopped is returned by Exec once Run has returned.
	ErrStopped = errors.New("app: stopped")
	// ErrRinging is returned for test sounds while an alarm rings.
	ErrRinging = errors.New("app: alarm is ringing")
)

// Player is the audio coordinator as used by the loop.
type Player interface {
	PlayTone(ctx context.Context, freq int, d time.Duration) error
	PlayFile(name string, loop bool) error
	Stop() error
	SetVolume(v int) int
	Volume() int
	Mode() audio.Mode
	CurrentFile() string
}

// Deps are the components the loop drives. Button and Events may be nil.
type Deps struct {
	Clock    *clock.Clock
	Alarms   *alarm.Store
	Settings *kv.Prefs
	Audio    Player
	Files    *files.Store
	Button   *button.Debouncer
	Display  display.Renderer
	Light    *frontlight.Manager
	Events   mqtt.Publisher
}

// Options tunes the loop.
type Options struct {
	Tick              time.Duration // main loop period
	Snooze            time.Duration
	RingTimeout       time.Duration
	ToneBurst         time.Duration
	TestToneLength    time.Duration
	DoubleClickWindow time.Duration
	Format12h         bool
}

// DefaultOptions returns the timings the clock ships with.
func DefaultOptions() Options {
	return Options{
		Tick:              10 * time.Millisecond,
		Snooze:            5 * time.Minute,
		RingTimeout:       10 * time.Minute,
		ToneBurst:         50 * time.Millisecond,
		TestToneLength:    3 * time.Second,
		DoubleClickWindow: button.DefaultDoubleClickWindow,
		Format12h:         true,
	}
}

type command struct {
	fn   func() error
	done chan error
}

// App is the running clock. Everything except Exec, Changes and Engine
// belongs to the goroutine calling Run.
type App struct {
	deps   Deps
	opts   Options
	engine *alarm.Engine
	clicks *alarm.ClickArbiter
	tones  *tonePlayer

	cmds    chan command
	stopped chan struct{}
	changed chan struct{}

	tick         time.Time // monotonic time of the current Step
	lastSecond   int64
	lastMinute   int
	ringStarted  time.Time
	timingOut    bool
	bleConnected bool
}

// New wires an App and restores the persisted volume.
func New(deps Deps, opts Options) (*App, error) {
	if deps.Clock == nil || deps.Alarms == nil || deps.Settings == nil || deps.Audio == nil ||
		deps.Files == nil || deps.Display == nil || deps.Light == nil {
		return nil, fmt.Errorf("app: missing dependency")
	}
	if deps.Events == nil {
		deps.Events = mqtt.Nop{}
	}
	def := DefaultOptions()
	if opts.Tick <= 0 {
		opts.Tick = def.Tick
	}
	if opts.RingTimeout <= 0 {
		opts.RingTimeout = def.RingTimeout
	}
	if opts.TestToneLength <= 0 {
		opts.TestToneLength = def.TestToneLength
	}
	if opts.DoubleClickWindow <= 0 {
		opts.DoubleClickWindow = def.DoubleClickWindow
	}

	a := &App{
		deps:       deps,
		opts:       opts,
		clicks:     alarm.NewClickArbiter(opts.DoubleClickWindow),
		tones:      newTonePlayer(deps.Audio, opts.ToneBurst),
		cmds:       make(chan command),
		stopped:    make(chan struct{}),
		changed:    make(chan struct{}, 1),
		lastSecond: -1,
		lastMinute: -1,
	}
	a.engine = alarm.NewEngine(deps.Alarms, alarm.RingerFunc(a.ring),
		alarm.WithSnooze(opts.Snooze),
		alarm.WithClock(deps.Clock.Now),
		alarm.WithObserver(a.onEvent))

	if deps.Settings.Has(prefVolume) {
		v := deps.Audio.SetVolume(int(deps.Settings.GetByte(prefVolume, 0)))
		slog.Info("[APP] restored volume", "volume", v)
	}
	return a, nil
}

// Engine returns the alarm engine.
func (a *App) Engine() *alarm.Engine { return a.engine }

// Changes signals, coalesced, whenever state a BLE central can read has
// changed.
func (a *App) Changes() <-chan struct{} { return a.changed }

func (a *App) notifyChanged() {
	select {
	case a.changed <- struct{}{}:
	default:
	}
}

// Exec runs fn on the loop goroutine and returns its error. It satisfies
// ble.Executor.
func (a *App) Exec(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case a.cmds <- cmd:
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the loop until ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer close(a.stopped)

	go a.tones.run(ctx)

	t := time.NewTicker(a.opts.Tick)
	defer t.Stop()

	slog.Info("[APP] running", "alarms", a.deps.Alarms.Len(), "tick", a.opts.Tick)
	a.Step(time.Now())
	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return nil
		case now := <-t.C:
			a.Step(now)
		case cmd := <-a.cmds:
			cmd.done <- cmd.fn()
			a.notifyChanged()
			a.render()
		}
	}
}

func (a *App) shutdown() {
	a.tones.Stop()
	if err := a.deps.Audio.Stop(); err != nil {
		slog.Warn("[APP] stopping audio", "error", err)
	}
	a.deps.Files.Abort()
	slog.Info("[APP] stopped")
}

// Step runs one loop iteration at monotonic time now.
func (a *App) Step(now time.Time) {
	a.tick = now
	a.pollButton(now)

	wall := a.deps.Clock.Now()
	if sec := wall.Unix(); sec != a.lastSecond {
		a.lastSecond = sec
		a.everySecond(wall)
	}
}

func (a *App) everySecond(wall time.Time) {
	hour, minute, _, day := a.deps.Clock.Fields()
	a.engine.CheckAlarms(hour, minute, day)

	if a.engine.IsRinging() {
		if a.tick.Sub(a.ringStarted) >= a.opts.RingTimeout {
			a.timeout()
		} else if !a.tones.Active() && a.deps.Audio.Mode() == audio.ModeIdle {
			slog.Warn("[APP] alarm went silent, falling back to tone", "id", a.engine.RingingID())
			a.playFallback()
		}
	}

	if minute != a.lastMinute {
		a.lastMinute = minute
		a.publishStatus(wall)
		a.notifyChanged()
	}
	a.render()
}

func (a *App) pollButton(now time.Time) {
	b := a.deps.Button
	if b == nil {
		return
	}
	if err := b.Update(); err != nil {
		slog.Debug("[APP] button read", "error", err)
		return
	}
	pressed := b.WasPressed()
	double := b.WasDoubleClicked()

	switch a.engine.State() {
	case alarm.Ringing:
		action := alarm.ActionNone
		switch {
		case double:
			action = a.clicks.DoubleClick()
		case pressed:
			a.clicks.Press(now)
		}
		if action == alarm.ActionNone {
			action = a.clicks.Poll(now)
		}
		a.apply(action)

	case alarm.Snoozed:
		a.clicks.Reset()
		if double {
			a.apply(alarm.ActionDismiss)
		}

	default:
		a.clicks.Reset()
		if pressed {
			if err := a.deps.Light.Toggle(); err != nil {
				slog.Warn("[LIGHT] toggle failed", "error", err)
			}
		}
	}
}

// apply performs a resolved button gesture.
func (a *App) apply(action alarm.Action) {
	switch action {
	case alarm.ActionNone:
		return
	case alarm.ActionSnooze:
		if rec, ok := a.deps.Alarms.Get(a.engine.RingingID()); ok && !rec.SnoozeEnabled {
			slog.Info("[APP] snooze disabled for alarm, dismissing", "id", rec.ID)
			a.engine.Dismiss()
		} else {
			a.engine.Snooze()
		}
	case alarm.ActionDismiss:
		a.engine.Dismiss()
	}
	a.silence()
	a.render()
	a.notifyChanged()
}

// ring starts the ringing alarm's sound. Missing or failing sounds fall
// back to the default tone.
func (a *App) ring(id int) {
	a.ringStarted = a.tick
	a.clicks.Reset()
	if a.deps.Button != nil {
		a.deps.Button.Reset()
	}

	sound := a.engine.RingingSound()
	if p, ok := audio.BuiltinTone(sound); ok {
		a.stopAudio()
		a.tones.Play(p, 0)
		return
	}
	a.tones.Stop()
	if err := a.deps.Audio.PlayFile(sound, true); err != nil {
		slog.Warn("[APP] alarm sound failed, falling back to tone", "id", id, "sound", sound, "error", err)
		a.playFallback()
	}
}

func (a *App) playFallback() {
	p, _ := audio.BuiltinTone(alarm.DefaultSound)
	a.tones.Play(p, 0)
}

func (a *App) silence() {
	a.tones.Stop()
	a.stopAudio()
}

func (a *App) stopAudio() {
	if err := a.deps.Audio.Stop(); err != nil {
		slog.Warn("[AUDIO] stop failed", "error", err)
	}
}

func (a *App) timeout() {
	slog.Info("[ALARM] ring timeout, dismissing", "id", a.engine.RingingID(), "after", a.opts.RingTimeout)
	a.timingOut = true
	a.engine.Dismiss()
	a.timingOut = false
	a.silence()
	a.notifyChanged()
}

// onEvent forwards engine transitions to the event publisher.
func (a *App) onEvent(ev alarm.Event) {
	out := mqtt.AlarmEvent{
		Timestamp: a.deps.Clock.Now(),
		AlarmID:   ev.AlarmID,
		Resumed:   ev.Resumed,
	}
	if rec, ok := a.deps.Alarms.Get(ev.AlarmID); ok {
		out.Label = rec.Label
		out.Sound = rec.Sound
	}
	switch ev.Kind {
	case alarm.EventRing:
		out.Event = mqtt.EventRinging
	case alarm.EventSnooze:
		out.Event = mqtt.EventSnoozed
		out.Until = fmt.Sprintf("%02d:%02d", ev.Hour, ev.Minute)
	case alarm.EventDismiss:
		out.Event = mqtt.EventDismissed
		if a.timingOut {
			out.Event = mqtt.EventTimeout
		}
	}
	if err := a.deps.Events.PublishAlarm(out); err != nil {
		slog.Warn("[MQTT] alarm event not queued", "event", out.Event, "error", err)
	}
}

func (a *App) publishStatus(wall time.Time) {
	s := mqtt.Status{
		Timestamp:     wall,
		Ringing:       a.engine.IsRinging(),
		Snoozed:       a.engine.IsSnoozed(),
		Volume:        a.deps.Audio.Volume(),
		Brightness:    a.deps.Light.Brightness(),
		TimeSynced:    a.deps.Clock.IsSynced(),
		EnabledAlarms: a.enabledCount(),
	}
	if rec, at, ok := alarm.Next(a.deps.Alarms.All(), wall); ok {
		s.NextAlarm = fmt.Sprintf("%s %s (%d)", at.Weekday().String()[:3], rec.TimeString(), rec.ID)
	}
	if err := a.deps.Events.PublishStatus(s); err != nil {
		slog.Warn("[MQTT] status not queued", "error", err)
	}
}

func (a *App) enabledCount() int {
	n := 0
	for _, r := range a.deps.Alarms.All() {
		if r.Eligible() {
			n++
		}
	}
	return n
}

// render draws the screen for the current state.
func (a *App) render() {
	c := a.deps.Clock
	status := display.Status{BLEConnected: a.bleConnected, TimeSynced: c.IsSynced()}
	switch {
	case a.engine.IsSnoozed():
		status.Alarm = display.AlarmSnooze
	case a.engine.HasEnabledAlarm():
		status.Alarm = display.AlarmSet
	}
	a.deps.Display.SetStatus(status)

	timeStr := c.TimeString(a.opts.Format12h)
	if a.engine.IsRinging() {
		label, bottom := alarm.DefaultLabel, ""
		if rec, ok := a.deps.Alarms.Get(a.engine.RingingID()); ok {
			label, bottom = rec.Label, rec.BottomRowLabel
		}
		a.deps.Display.ShowRinging(timeStr, label, bottom)
		return
	}
	_, _, second, _ := c.Fields()
	a.deps.Display.ShowClock(timeStr, c.DateString(), c.WeekdayString(), second)
}
