package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
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

// fakePlayer stands in for the audio coordinator.
type fakePlayer struct {
	mu      sync.Mutex
	volume  int
	mode    audio.Mode
	current string
	files   []string
	loops   []bool
	tones   []int
	stops   int
	fileErr error
	stopErr error
}

func (p *fakePlayer) PlayTone(_ context.Context, freq int, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tones = append(p.tones, freq)
	return nil
}

func (p *fakePlayer) PlayFile(name string, loop bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append(p.files, name)
	p.loops = append(p.loops, loop)
	if p.fileErr != nil {
		p.mode = audio.ModeIdle
		return p.fileErr
	}
	p.mode = audio.ModeStreamingFile
	p.current = name
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	if p.stopErr != nil {
		return p.stopErr
	}
	p.mode = audio.ModeIdle
	p.current = ""
	return nil
}

func (p *fakePlayer) SetVolume(v int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = max(0, min(100, v))
	return p.volume
}

func (p *fakePlayer) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *fakePlayer) Mode() audio.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *fakePlayer) CurrentFile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakePlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

// fakeRenderer records the last screen drawn.
type fakeRenderer struct {
	ringing     bool
	label       string
	bottom      string
	timeStr     string
	status      display.Status
	message     string
	bottomLabel string
	frames      int
}

func (r *fakeRenderer) ShowClock(timeStr, _, _ string, _ int) {
	r.ringing = false
	r.timeStr = timeStr
	r.frames++
}

func (r *fakeRenderer) ShowRinging(timeStr, label, bottom string) {
	r.ringing = true
	r.timeStr, r.label, r.bottom = timeStr, label, bottom
	r.frames++
}

func (r *fakeRenderer) SetStatus(s display.Status) { r.status = s }
func (r *fakeRenderer) SetMessage(msg string) error { r.message = msg; return nil }
func (r *fakeRenderer) Message() string { return r.message }
func (r *fakeRenderer) SetBottomLabel(label string) error { r.bottomLabel = label; return nil }
func (r *fakeRenderer) BottomLabel() string { return r.bottomLabel }

type hostClock struct{ t time.Time }

func (h *hostClock) Now() time.Time { return h.t }

type harness struct {
	t        *testing.T
	app      *App
	host     *hostClock
	clock    *clock.Clock
	store    *alarm.Store
	settings *kv.Prefs
	player   *fakePlayer
	screen   *fakeRenderer
	events   *mqtt.FakePublisher
	pin      *button.FakeReader
	light    *frontlight.Manager
	files    *files.Store
}

// start is Monday 2026-01-05 07:29:59 UTC.
var start = time.Date(2026, 1, 5, 7, 29, 59, 0, time.UTC)

// newHarness starts from DefaultOptions; tune adjusts them when non-nil.
func newHarness(t *testing.T, tune func(*Options), recs ...alarm.Record) *harness {
	t.Helper()
	opts := DefaultOptions()
	if tune != nil {
		tune(&opts)
	}
	mem := kv.NewMemory()
	h := &harness{
		t:        t,
		host:     &hostClock{t: start},
		store:    alarm.NewStore(kv.NewPrefs(mem, alarm.Namespace)),
		settings: kv.NewPrefs(mem, SettingsNamespace),
		player:   &fakePlayer{volume: 70},
		screen:   &fakeRenderer{},
		events:   mqtt.NewFakePublisher(),
		pin:      button.NewFakeReader(),
	}
	for _, r := range recs {
		if err := h.store.Set(r); err != nil {
			t.Fatalf("Set(%d) error = %v", r.ID, err)
		}
	}
	h.clock = clock.New(clock.WithLocation(time.UTC), clock.WithSource(h.host.Now))
	h.clock.Set(start)

	var err error
	h.files, err = files.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("files.New() error = %v", err)
	}
	h.light, err = frontlight.NewManager(frontlight.NopPWM{}, h.settings)
	if err != nil {
		t.Fatalf("frontlight.NewManager() error = %v", err)
	}
	btn, err := button.New(h.pin, button.WithClock(h.host.Now))
	if err != nil {
		t.Fatalf("button.New() error = %v", err)
	}

	h.app, err = New(Deps{
		Clock:    h.clock,
		Alarms:   h.store,
		Settings: h.settings,
		Audio:    h.player,
		Files:    h.files,
		Button:   btn,
		Display:  h.screen,
		Light:    h.light,
		Events:   h.events,
	}, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.app.Step(h.host.t)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.host.t = h.host.t.Add(d)
	h.app.Step(h.host.t)
}

func (h *harness) press() {
	h.pin.Set(true)
	h.advance(10 * time.Millisecond)
	h.advance(60 * time.Millisecond)
}

func (h *harness) release() {
	h.pin.Set(false)
	h.advance(10 * time.Millisecond)
	h.advance(60 * time.Millisecond)
}

func (h *harness) eventNames() []string {
	var names []string
	for _, e := range h.events.Alarms() {
		names = append(names, e.Event)
	}
	return names
}

func daily(id, hour, minute int, sound string) alarm.Record {
	return alarm.Record{ID: id, Hour: hour, Minute: minute, Days: alarm.Everyday, Enabled: true,
		Sound: sound, Label: "Wake up", SnoozeEnabled: true}
}

func TestAlarmRingsWithBuiltinTone(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "tone2"))
	if h.app.Engine().IsRinging() {
		t.Fatal("ringing before 07:30")
	}

	h.advance(time.Second)

	if !h.app.Engine().IsRinging() {
		t.Fatal("not ringing at 07:30")
	}
	if !h.app.tones.Active() {
		t.Error("tone pattern not started")
	}
	if len(h.player.files) != 0 {
		t.Errorf("PlayFile called for a built-in tone: %v", h.player.files)
	}
	if got := h.eventNames(); len(got) != 1 || got[0] != mqtt.EventRinging {
		t.Errorf("events = %v, want [RINGING]", got)
	}
	if !h.screen.ringing || h.screen.label != "Wake up" || h.screen.timeStr != "7:30 AM" {
		t.Errorf("screen = %+v, want ringing 'Wake up' at 7:30 AM", h.screen)
	}
}

func TestClockFace24Hour(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Format12h = false }, daily(0, 7, 30, "tone1"))
	if h.screen.timeStr != "07:29" {
		t.Errorf("clock time = %q, want 07:29", h.screen.timeStr)
	}
	h.advance(time.Second)
	if !h.screen.ringing || h.screen.timeStr != "07:30" {
		t.Errorf("screen = %+v, want ringing at 07:30", h.screen)
	}
}

func TestAlarmRingsWithFile(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "birds.mp3"))
	h.advance(time.Second)

	if len(h.player.files) != 1 || h.player.files[0] != "birds.mp3" || !h.player.loops[0] {
		t.Fatalf("PlayFile calls = %v loops = %v, want looping birds.mp3", h.player.files, h.player.loops)
	}
	if h.app.tones.Active() {
		t.Error("tone pattern running alongside the file")
	}
}

func TestAlarmFallsBackToTone(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "gone.mp3"))
	h.player.fileErr = audio.ErrFileNotFound
	h.advance(time.Second)

	if !h.app.Engine().IsRinging() {
		t.Fatal("not ringing")
	}
	if !h.app.tones.Active() {
		t.Error("missing file did not fall back to a tone")
	}
}

func TestSilentAlarmRestartsTone(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "birds.mp3"))
	h.advance(time.Second)

	// The file ends or fails mid-ring.
	h.player.Stop()
	h.advance(time.Second)

	if !h.app.tones.Active() {
		t.Error("silent ringing alarm did not fall back to a tone")
	}
}

func TestSingleClickSnoozes(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "tone1"))
	h.advance(time.Second)

	h.press()
	h.release()
	if !h.app.Engine().IsRinging() {
		t.Fatal("snoozed before the double-click window passed")
	}
	h.advance(700 * time.Millisecond)

	if !h.app.Engine().IsSnoozed() {
		t.Fatalf("state = %v, want snoozed", h.app.Engine().State())
	}
	if h.app.tones.Active() {
		t.Error("tone still playing after snooze")
	}
	events := h.events.Alarms()
	last := events[len(events)-1]
	if last.Event != mqtt.EventSnoozed || last.Until != "07:35" {
		t.Errorf("last event = %s until %q, want SNOOZED until 07:35", last.Event, last.Until)
	}
	if h.screen.ringing || h.screen.status.Alarm != display.AlarmSnooze {
		t.Errorf("screen ringing = %v status = %q, want clock with SNOOZE", h.screen.ringing, h.screen.status.Alarm)
	}
}

func TestSnoozedAlarmRingsAgain(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "tone1"))
	h.advance(time.Second)
	h.press()
	h.release()
	h.advance(700 * time.Millisecond)

	h.host.t = time.Date(2026, 1, 5, 7, 35, 0, 0, time.UTC)
	h.app.Step(h.host.t)

	if !h.app.Engine().IsRinging() {
		t.Fatalf("state = %v, want ringing again", h.app.Engine().State())
	}
	events := h.events.Alarms()
	if last := events[len(events)-1]; last.Event != mqtt.EventRinging || !last.Resumed {
		t.Errorf("last event = %+v, want resumed RINGING", last)
	}
}

func TestDoubleClickDismisses(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "tone1"))
	h.advance(time.Second)

	h.press()
	h.release()
	h.press()
	h.release()

	if got := h.app.Engine().State(); got != alarm.Idle {
		t.Fatalf("state = %v, want idle", got)
	}
	// The pending single click must not snooze afterwards.
	h.advance(time.Second)
	if h.app.Engine().IsSnoozed() {
		t.Error("pending click snoozed after dismiss")
	}
	names := h.eventNames()
	if names[len(names)-1] != mqtt.EventDismissed {
		t.Errorf("events = %v, want DISMISSED last", names)
	}
}

func TestSingleClickDismissesWithoutSnooze(t *testing.T) {
	rec := daily(0, 7, 30, "tone1")
	rec.SnoozeEnabled = false
	h := newHarness(t, nil, rec)
	h.advance(time.Second)

	h.press()
	h.release()
	h.advance(700 * time.Millisecond)

	if got := h.app.Engine().State(); got != alarm.Idle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestRingTimeout(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.RingTimeout = 2 * time.Minute }, daily(0, 7, 30, "tone1"))
	h.advance(time.Second)

	h.advance(time.Minute)
	if !h.app.Engine().IsRinging() {
		t.Fatal("timed out early")
	}
	h.advance(time.Minute)

	if got := h.app.Engine().State(); got != alarm.Idle {
		t.Fatalf("state = %v, want idle after timeout", got)
	}
	names := h.eventNames()
	if names[len(names)-1] != mqtt.EventTimeout {
		t.Errorf("events = %v, want TIMEOUT last", names)
	}
	for _, n := range names {
		if n == mqtt.EventDismissed {
			t.Errorf("timeout also published DISMISSED: %v", names)
		}
	}
	if h.app.tones.Active() {
		t.Error("tone still playing after timeout")
	}
}

func TestIdlePressTogglesLight(t *testing.T) {
	h := newHarness(t, nil)
	if !h.light.IsOn() {
		t.Fatal("light should start on")
	}
	h.press()
	if h.light.IsOn() {
		t.Error("press did not turn the light off")
	}
	h.release()
	h.press()
	if !h.light.IsOn() || h.light.Brightness() != frontlight.DefaultBrightness {
		t.Errorf("light on = %v brightness = %d, want on at %d", h.light.IsOn(), h.light.Brightness(), frontlight.DefaultBrightness)
	}
}

func TestStatusPublishedEachMinute(t *testing.T) {
	h := newHarness(t, nil, daily(3, 8, 0, "tone1"))
	if n := len(h.events.Statuses()); n != 1 {
		t.Fatalf("statuses at start = %d, want 1", n)
	}
	h.advance(time.Second)
	h.advance(time.Second)
	statuses := h.events.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d, want 2", len(statuses))
	}
	s := statuses[1]
	if s.EnabledAlarms != 1 || s.NextAlarm != "Mon 08:00 (3)" || s.Volume != 70 {
		t.Errorf("status = %+v", s)
	}
	if !s.TimeSynced {
		t.Error("status should report a synced clock")
	}
}

func TestVolumePersisted(t *testing.T) {
	h := newHarness(t, nil)
	h.app.SetVolume(150)
	if h.player.Volume() != 100 {
		t.Errorf("volume = %d, want clamped 100", h.player.Volume())
	}
	if got := h.settings.GetByte(prefVolume, 0); got != 100 {
		t.Errorf("persisted volume = %d, want 100", got)
	}

	h.settings.PutByte(prefVolume, 35)
	player := &fakePlayer{volume: 70}
	deps := h.app.deps
	deps.Audio = player
	if _, err := New(deps, Options{}); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if player.Volume() != 35 {
		t.Errorf("restored volume = %d, want 35", player.Volume())
	}
}

func TestTestSound(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "tone1"))

	if err := h.app.PlayTestSound("tone3"); err != nil {
		t.Fatalf("PlayTestSound(tone3) error = %v", err)
	}
	if !h.app.tones.Active() {
		t.Error("test tone not playing")
	}
	if err := h.app.PlayTestSound("chime.wav"); err != nil {
		t.Fatalf("PlayTestSound(chime.wav) error = %v", err)
	}
	if h.app.tones.Active() || h.player.current != "chime.wav" || h.player.loops[0] {
		t.Errorf("file test: tones active = %v, current = %q", h.app.tones.Active(), h.player.current)
	}
	if err := h.app.StopSound(); err != nil {
		t.Fatalf("StopSound() error = %v", err)
	}

	h.advance(time.Second)
	if err := h.app.PlayTestSound("tone2"); !errors.Is(err, ErrRinging) {
		t.Errorf("PlayTestSound while ringing error = %v, want ErrRinging", err)
	}
	if err := h.app.StopSound(); !errors.Is(err, ErrRinging) {
		t.Errorf("StopSound while ringing error = %v, want ErrRinging", err)
	}
}

func TestStopFailures(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "tone1"))
	stuck := errors.New("audio lock timeout")
	h.player.stopErr = stuck

	if err := h.app.PlayTestSound("tone3"); !errors.Is(err, stuck) {
		t.Errorf("PlayTestSound() error = %v, want %v", err, stuck)
	}
	if h.app.tones.Active() {
		t.Error("test tone started although playback could not be stopped")
	}

	// An alarm still rings when the stop before its tone fails.
	h.advance(time.Second)
	if !h.app.Engine().IsRinging() || !h.app.tones.Active() {
		t.Errorf("ringing = %v, tones active = %v, want both", h.app.Engine().IsRinging(), h.app.tones.Active())
	}
}

func TestUploadAndDeleteFile(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.app.BeginUpload("chime.wav"); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}
	if st := h.app.Status(); st.Uploading != "chime.wav" {
		t.Errorf("status uploading = %q, want chime.wav", st.Uploading)
	}
	h.app.WriteUpload([]byte("RIFF"))
	n, err := h.app.EndUpload()
	if err != nil || n != 4 {
		t.Fatalf("EndUpload() = %d, %v", n, err)
	}

	h.app.PlayTestSound("chime.wav")
	stops := h.player.stopCount()
	if err := h.app.DeleteFile("chime.wav"); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if h.player.stopCount() != stops+1 {
		t.Error("deleting the playing file did not stop playback")
	}
	if h.files.Exists("chime.wav") {
		t.Error("file still exists")
	}
}

func TestDeviceStatus(t *testing.T) {
	h := newHarness(t, nil, daily(0, 7, 30, "tone1"), daily(1, 9, 0, "tone2"))
	h.app.SetConnected(true)
	h.advance(time.Second)

	st := h.app.Status()
	if !st.Ringing || st.Snoozed || st.Alarms != 2 || st.Volume != 70 || st.Brightness != 50 {
		t.Errorf("status = %+v", st)
	}
	if !strings.HasPrefix(st.Time, "2026-01-05T07:30:00") {
		t.Errorf("status time = %q", st.Time)
	}
	if !h.screen.status.BLEConnected {
		t.Error("BLE indicator not shown")
	}
}

func TestExecRunsOnLoop(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Tick = time.Millisecond })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	want := errors.New("boom")
	if err := h.app.Exec(callCtx, func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Exec() error = %v, want %v", err, want)
	}
	if err := h.app.Exec(callCtx, func() error { h.app.SetBrightness(20); return nil }); err != nil {
		t.Errorf("Exec() error = %v", err)
	}
	if h.light.Brightness() != 20 {
		t.Errorf("brightness = %d, want 20", h.light.Brightness())
	}
	select {
	case <-h.app.Changes():
	case <-time.After(5 * time.Second):
		t.Error("no change notification after a command")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if err := h.app.Exec(callCtx, func() error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Exec() after stop error = %v, want ErrStopped", err)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{}, Options{}); err == nil {
		t.Error("New() with no deps should fail")
	}
}
