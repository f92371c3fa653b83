package alarm

import (
	"testing"
	"time"
)

// recordingRinger remembers every Ring call.
type recordingRinger struct {
	rung []int
}

func (r *recordingRinger) Ring(id int) { r.rung = append(r.rung, id) }

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func at(h, m int) time.Time {
	// 2026-01-05 is a Monday
	return time.Date(2026, 1, 5, h, m, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T, recs ...Record) (*Engine, *Store, *recordingRinger, *fakeClock) {
	t.Helper()
	s, _ := newTestStore(t)
	for _, r := range recs {
		if err := s.Set(r); err != nil {
			t.Fatalf("Set(%d) error = %v", r.ID, err)
		}
	}
	ringer := &recordingRinger{}
	clk := &fakeClock{t: at(0, 0)}
	return NewEngine(s, ringer, WithClock(clk.Now)), s, ringer, clk
}

func TestCheckAlarmsDayBits(t *testing.T) {
	rec := daily(0, 7, 30)
	rec.Days = Monday | Wednesday

	for day := time.Sunday; day <= time.Saturday; day++ {
		e, _, ringer, _ := newTestEngine(t, rec)
		fired := e.CheckAlarms(7, 30, day)
		want := day == time.Monday || day == time.Wednesday
		if fired != want {
			t.Errorf("%s: fired = %v, want %v", day, fired, want)
		}
		if want && (len(ringer.rung) != 1 || ringer.rung[0] != 0) {
			t.Errorf("%s: ringer calls = %v, want [0]", day, ringer.rung)
		}
	}
}

func TestCheckAlarmsTimeMustMatch(t *testing.T) {
	e, _, ringer, _ := newTestEngine(t, daily(0, 7, 30))
	e.CheckAlarms(7, 29, time.Monday)
	e.CheckAlarms(8, 31, time.Monday)
	if len(ringer.rung) != 0 {
		t.Errorf("rang on non-matching time: %v", ringer.rung)
	}
}

func TestCheckAlarmsSkipsDisabled(t *testing.T) {
	off := daily(0, 7, 30)
	off.Enabled = false
	perm := daily(1, 7, 30)
	perm.PermanentlyDisabled = true

	e, _, ringer, _ := newTestEngine(t, off, perm)
	if e.CheckAlarms(7, 30, time.Monday) {
		t.Error("disabled alarms fired")
	}
	if len(ringer.rung) != 0 {
		t.Errorf("ringer calls = %v, want none", ringer.rung)
	}
}

func TestCheckAlarmsOncePerMinute(t *testing.T) {
	e, _, ringer, _ := newTestEngine(t, daily(0, 7, 30))

	if !e.CheckAlarms(7, 30, time.Monday) {
		t.Fatal("first check did not fire")
	}
	e.Dismiss()
	if e.CheckAlarms(7, 30, time.Monday) {
		t.Error("second check in the same minute fired again")
	}
	if len(ringer.rung) != 1 {
		t.Errorf("ringer calls = %d, want 1", len(ringer.rung))
	}
}

func TestOneShotFiresOnce(t *testing.T) {
	one := daily(3, 6, 45)
	one.Days = Once

	e, s, ringer, _ := newTestEngine(t, one)

	if !e.CheckAlarms(6, 45, time.Thursday) {
		t.Fatal("one-shot did not fire")
	}
	got, _ := s.Get(3)
	if got.Enabled || !got.PermanentlyDisabled {
		t.Errorf("after firing: enabled=%v permanentlyDisabled=%v, want false true", got.Enabled, got.PermanentlyDisabled)
	}
	e.Dismiss()

	// next day, same time
	e.CheckAlarms(6, 44, time.Friday)
	if e.CheckAlarms(6, 45, time.Friday) {
		t.Error("one-shot fired a second time")
	}

	// re-enabling without clearing the permanent flag keeps it quiet
	got.Enabled = true
	s.Set(got)
	e.CheckAlarms(6, 44, time.Saturday)
	if e.CheckAlarms(6, 45, time.Saturday) {
		t.Error("re-enabled permanently disabled one-shot fired")
	}
	if len(ringer.rung) != 1 {
		t.Errorf("ringer calls = %v, want exactly one", ringer.rung)
	}
}

func TestOneShotDisabledBeforeRing(t *testing.T) {
	one := daily(3, 6, 45)
	one.Days = Once

	s, _ := newTestStore(t)
	s.Set(one)

	var sawDisabled bool
	e := NewEngine(s, RingerFunc(func(id int) {
		r, _ := s.Get(id)
		sawDisabled = r.PermanentlyDisabled && !r.Enabled
	}))
	e.CheckAlarms(6, 45, time.Sunday)
	if !sawDisabled {
		t.Error("ringer ran before the one-shot was disabled")
	}
}

func TestSameMinuteListOrderWins(t *testing.T) {
	a := daily(0, 7, 0)
	a.Days = Monday
	b := daily(1, 7, 0)
	b.Days = Monday

	e, _, ringer, _ := newTestEngine(t, a, b)
	e.CheckAlarms(7, 0, time.Monday)

	if len(ringer.rung) != 1 || ringer.rung[0] != 0 {
		t.Errorf("ringer calls = %v, want [0]", ringer.rung)
	}
	if e.RingingID() != 0 {
		t.Errorf("RingingID() = %d, want 0", e.RingingID())
	}
}

func TestSnoozeTargets(t *testing.T) {
	tests := []struct {
		name         string
		ringH, ringM int
		wantH, wantM int
	}{
		{"same hour", 7, 30, 7, 35},
		{"minute wrap", 7, 58, 8, 3},
		{"midnight wrap", 23, 59, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, ringer, clk := newTestEngine(t, daily(2, tt.ringH, tt.ringM))
			e.CheckAlarms(tt.ringH, tt.ringM, time.Monday)
			clk.t = at(tt.ringH, tt.ringM)

			if !e.Snooze() {
				t.Fatal("Snooze() = false while ringing")
			}
			h, m, ok := e.SnoozeTarget()
			if !ok || h != tt.wantH || m != tt.wantM {
				t.Fatalf("SnoozeTarget() = %02d:%02d %v, want %02d:%02d true", h, m, ok, tt.wantH, tt.wantM)
			}
			if e.State() != Snoozed || e.IsRinging() || !e.IsSnoozed() {
				t.Fatalf("state after snooze = %s", e.State())
			}

			if !e.CheckAlarms(tt.wantH, tt.wantM, time.Tuesday) {
				t.Fatal("snooze target did not ring")
			}
			if e.State() != Ringing || e.RingingID() != 2 {
				t.Errorf("after snooze target: state %s id %d, want ringing 2", e.State(), e.RingingID())
			}
			if len(ringer.rung) != 2 || ringer.rung[1] != 2 {
				t.Errorf("ringer calls = %v, want [2 2]", ringer.rung)
			}
		})
	}
}

func TestSnoozeHitTakesPriorityOverSchedule(t *testing.T) {
	first := daily(0, 7, 0)
	second := daily(1, 7, 5)

	e, _, ringer, clk := newTestEngine(t, first, second)
	e.CheckAlarms(7, 0, time.Monday)
	clk.t = at(7, 0)
	e.Snooze()

	e.CheckAlarms(7, 5, time.Monday)
	if e.RingingID() != 0 {
		t.Errorf("RingingID() = %d, want snoozed alarm 0", e.RingingID())
	}
	if len(ringer.rung) != 2 || ringer.rung[1] != 0 {
		t.Errorf("ringer calls = %v, want [0 0]", ringer.rung)
	}
}

func TestSnoozeWhenNotRingingIsNoop(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	if e.Snooze() {
		t.Error("Snooze() = true while idle")
	}
	if e.State() != Idle {
		t.Errorf("state = %s, want idle", e.State())
	}
}

func TestWithSnoozeLength(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set(daily(0, 6, 50))
	clk := &fakeClock{t: at(6, 50)}
	e := NewEngine(s, nil, WithClock(clk.Now), WithSnooze(15*time.Minute))
	e.CheckAlarms(6, 50, time.Monday)
	e.Snooze()
	if h, m, _ := e.SnoozeTarget(); h != 7 || m != 5 {
		t.Errorf("SnoozeTarget() = %02d:%02d, want 07:05", h, m)
	}
}

func TestDismissIdempotent(t *testing.T) {
	e, _, _, clk := newTestEngine(t, daily(0, 7, 0))

	e.Dismiss()
	if e.State() != Idle {
		t.Fatalf("Dismiss() while idle left state %s", e.State())
	}

	e.CheckAlarms(7, 0, time.Monday)
	e.Dismiss()
	e.Dismiss()
	if e.State() != Idle || e.RingingID() != NoAlarm {
		t.Errorf("after double dismiss: state %s id %d", e.State(), e.RingingID())
	}

	e.CheckAlarms(7, 1, time.Monday)
	e.CheckAlarms(7, 0, time.Tuesday)
	clk.t = at(7, 0)
	e.Snooze()
	e.Dismiss()
	if e.IsSnoozed() {
		t.Error("Dismiss() did not clear snooze")
	}
	// the cleared snooze target must not ring
	if e.CheckAlarms(7, 5, time.Tuesday) {
		t.Error("dismissed snooze rang")
	}
}

func TestRingingSound(t *testing.T) {
	rec := daily(4, 7, 0)
	rec.Sound = "birds.mp3"
	e, s, _, _ := newTestEngine(t, rec)

	if got := e.RingingSound(); got != "" {
		t.Errorf("RingingSound() idle = %q, want empty", got)
	}
	e.CheckAlarms(7, 0, time.Monday)
	if got := e.RingingSound(); got != "birds.mp3" {
		t.Errorf("RingingSound() = %q, want birds.mp3", got)
	}
	s.Delete(4)
	if got := e.RingingSound(); got != DefaultSound {
		t.Errorf("RingingSound() for deleted alarm = %q, want %q", got, DefaultSound)
	}
}

func TestObserverEvents(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set(daily(0, 7, 0))
	clk := &fakeClock{t: at(7, 0)}

	var kinds []EventKind
	e := NewEngine(s, nil, WithClock(clk.Now), WithObserver(func(ev Event) {
		kinds = append(kinds, ev.Kind)
	}))
	e.CheckAlarms(7, 0, time.Monday)
	e.Snooze()
	e.CheckAlarms(7, 5, time.Monday)
	e.Dismiss()
	e.Dismiss()

	want := []EventKind{EventRing, EventSnooze, EventRing, EventDismiss}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestHasEnabledAlarmAfterOneShot(t *testing.T) {
	one := daily(0, 7, 0)
	one.Days = Once
	e, _, _, _ := newTestEngine(t, one)
	if !e.HasEnabledAlarm() {
		t.Fatal("HasEnabledAlarm() = false before firing")
	}
	e.CheckAlarms(7, 0, time.Monday)
	if e.HasEnabledAlarm() {
		t.Error("HasEnabledAlarm() = true after the only one-shot fired")
	}
}
