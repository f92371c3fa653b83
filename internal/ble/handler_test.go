package ble

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/bedclock/internal/alarm"
	"github.com/chaz8081/bedclock/internal/ble/protocol"
)

// fakeDevice records the calls the handler makes.
type fakeDevice struct {
	now        time.Time
	volume     int
	brightness int
	message    string
	sounds     []string
	stopped    int
	alarms     map[int]alarm.Record
	upload     []byte
	uploadName string
	deleted    []string
	connected  bool
	failWith   error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{alarms: make(map[int]alarm.Record), now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (d *fakeDevice) SetTime(t time.Time) { d.now = t }
func (d *fakeDevice) SetDateTime(s string) error {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return err
	}
	d.now = t
	return nil
}
func (d *fakeDevice) SetVolume(v int) { d.volume = v }
func (d *fakeDevice) Volume() int     { return d.volume }
func (d *fakeDevice) PlayTestSound(name string) error {
	if d.failWith != nil {
		return d.failWith
	}
	d.sounds = append(d.sounds, name)
	return nil
}
func (d *fakeDevice) StopSound() error { d.stopped++; return nil }
func (d *fakeDevice) SetMessage(msg string) error {
	d.message = msg
	return nil
}
func (d *fakeDevice) Message() string { return d.message }
func (d *fakeDevice) SetAlarm(rec alarm.Record) error {
	d.alarms[rec.ID] = rec
	return nil
}
func (d *fakeDevice) DeleteAlarm(id int) error {
	if _, ok := d.alarms[id]; !ok {
		return alarm.ErrNotFound
	}
	delete(d.alarms, id)
	return nil
}
func (d *fakeDevice) Alarms() []alarm.Record {
	var out []alarm.Record
	for i := 0; i < alarm.MaxAlarms; i++ {
		if r, ok := d.alarms[i]; ok {
			out = append(out, r)
		}
	}
	return out
}
func (d *fakeDevice) SetBrightness(p int) error { d.brightness = p; return nil }
func (d *fakeDevice) Brightness() int           { return d.brightness }
func (d *fakeDevice) BeginUpload(name string) error {
	d.uploadName = name
	d.upload = nil
	return nil
}
func (d *fakeDevice) WriteUpload(data []byte) error {
	d.upload = append(d.upload, data...)
	return nil
}
func (d *fakeDevice) EndUpload() (int64, error) { return int64(len(d.upload)), nil }
func (d *fakeDevice) AbortUpload()              { d.uploadName = "" }
func (d *fakeDevice) DeleteFile(name string) error {
	d.deleted = append(d.deleted, name)
	return nil
}
func (d *fakeDevice) SetConnected(c bool) { d.connected = c }
func (d *fakeDevice) Status() Status {
	return Status{Time: d.now.Format(time.RFC3339), Volume: d.volume, Alarms: len(d.alarms)}
}

func newTestHandler() (*Handler, *fakeDevice) {
	d := newFakeDevice()
	return NewHandler(d, Direct, time.Second), d
}

func TestTimeWrite(t *testing.T) {
	h, d := newTestHandler()
	// 1767225600 = 2026-01-01T00:00:00Z
	if err := h.HandleWrite(TimeCharUUID, []byte{0x00, 0xB9, 0x55, 0x69}); err != nil {
		t.Fatalf("HandleWrite(time) error = %v", err)
	}
	if d.now.Unix() != 1767225600 {
		t.Errorf("time = %d, want 1767225600", d.now.Unix())
	}
	if err := h.HandleWrite(TimeCharUUID, []byte{1, 2}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("short timestamp error = %v, want ErrInvalidValue", err)
	}

	v, err := h.ReadValue(TimeCharUUID)
	if err != nil || len(v) != 4 || v[3] != 0x69 {
		t.Errorf("ReadValue(time) = %x, %v", v, err)
	}
}

func TestDateTimeWrite(t *testing.T) {
	h, d := newTestHandler()
	if err := h.HandleWrite(DateTimeCharUUID, []byte("2026-01-14 15:30:00\n")); err != nil {
		t.Fatalf("HandleWrite(datetime) error = %v", err)
	}
	if d.now.Hour() != 15 || d.now.Day() != 14 {
		t.Errorf("time = %v", d.now)
	}
	if err := h.HandleWrite(DateTimeCharUUID, []byte("yesterday")); err == nil {
		t.Error("bad datetime expected error")
	}
	v, _ := h.ReadValue(DateTimeCharUUID)
	if string(v) != "2026-01-14 15:30:00" {
		t.Errorf("ReadValue(datetime) = %q", v)
	}
}

func TestSettingsWrites(t *testing.T) {
	h, d := newTestHandler()
	h.HandleWrite(VolumeCharUUID, []byte{250})
	if d.volume != 100 {
		t.Errorf("volume = %d, want clamped 100", d.volume)
	}
	h.HandleWrite(BrightnessCharUUID, []byte{30})
	if d.brightness != 30 {
		t.Errorf("brightness = %d, want 30", d.brightness)
	}
	if err := h.HandleWrite(VolumeCharUUID, []byte{1, 2}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("2-byte volume error = %v, want ErrInvalidValue", err)
	}
	h.HandleWrite(MessageCharUUID, []byte("Good morning\x00"))
	if d.message != "Good morning" {
		t.Errorf("message = %q", d.message)
	}
	if v, _ := h.ReadValue(VolumeCharUUID); v[0] != 100 {
		t.Errorf("ReadValue(volume) = %v", v)
	}
}

func TestTestSound(t *testing.T) {
	h, d := newTestHandler()
	h.HandleWrite(TestSoundCharUUID, []byte("tone2"))
	h.HandleWrite(TestSoundCharUUID, []byte("stop"))
	if len(d.sounds) != 1 || d.sounds[0] != "tone2" || d.stopped != 1 {
		t.Errorf("sounds = %v stopped = %d", d.sounds, d.stopped)
	}
	d.failWith = errors.New("no such file")
	if err := h.HandleWrite(TestSoundCharUUID, []byte("x.mp3")); err == nil {
		t.Error("device error not returned")
	}
}

func TestParseAlarm(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    alarm.Record
		wantErr error
	}{
		{
			name: "defaults",
			json: `{"id":2,"hour":6,"minute":45}`,
			want: alarm.Record{ID: 2, Hour: 6, Minute: 45, Enabled: true, Sound: "tone1", Label: "Alarm", SnoozeEnabled: true},
		},
		{
			name: "full",
			json: `{"id":0,"hour":7,"minute":0,"days":62,"enabled":false,"sound":"birds.mp3","label":"Work","snooze":false,"bottomRowLabel":"Coffee, then shower"}`,
			want: alarm.Record{ID: 0, Hour: 7, Days: alarm.Workdays, Sound: "birds.mp3", Label: "Work", BottomRowLabel: "Coffee, then shower"},
		},
		{
			name: "day names",
			json: `{"id":1,"hour":9,"minute":0,"dayNames":"sat,sun"}`,
			want: alarm.Record{ID: 1, Hour: 9, Days: alarm.Weekends, Enabled: true, Sound: "tone1", Label: "Alarm", SnoozeEnabled: true},
		},
		{name: "missing minute", json: `{"id":1,"hour":9}`, wantErr: ErrInvalidValue},
		{name: "bad id", json: `{"id":10,"hour":9,"minute":0}`, wantErr: alarm.ErrInvalidID},
		{name: "bad hour", json: `{"id":1,"hour":24,"minute":0}`, wantErr: alarm.ErrInvalidRecord},
		{name: "comma in label", json: `{"id":1,"hour":1,"minute":0,"label":"a,b"}`, wantErr: alarm.ErrInvalidRecord},
		{name: "not json", json: `7:30`, wantErr: ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlarm([]byte(tt.json))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseAlarm() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAlarm() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseAlarm() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAlarmSetListDelete(t *testing.T) {
	h, d := newTestHandler()
	if err := h.HandleWrite(AlarmSetCharUUID, []byte(`{"id":3,"hour":6,"minute":0}`)); err != nil {
		t.Fatalf("alarm set error = %v", err)
	}
	if _, ok := d.alarms[3]; !ok {
		t.Fatal("alarm 3 not set")
	}

	v, err := h.ReadValue(AlarmListCharUUID)
	if err != nil {
		t.Fatalf("ReadValue(alarm list) error = %v", err)
	}
	var list []alarm.Record
	if err := json.Unmarshal(v, &list); err != nil {
		t.Fatalf("alarm list is not JSON: %v", err)
	}
	if len(list) != 1 || list[0].ID != 3 {
		t.Errorf("alarm list = %+v", list)
	}

	if err := h.HandleWrite(AlarmDelCharUUID, []byte{3}); err != nil {
		t.Fatalf("alarm delete error = %v", err)
	}
	if err := h.HandleWrite(AlarmDelCharUUID, []byte{3}); !errors.Is(err, alarm.ErrNotFound) {
		t.Errorf("second delete error = %v, want alarm.ErrNotFound", err)
	}
	if v, _ := h.ReadValue(AlarmListCharUUID); string(v) != "[]" {
		t.Errorf("empty alarm list = %s, want []", v)
	}
}

func TestFileTransfer(t *testing.T) {
	h, d := newTestHandler()
	steps := []struct {
		uuid string
		data string
	}{
		{FileCtlCharUUID, "start:birds.mp3"},
		{FileDataCharUUID, "ID3"},
		{FileDataCharUUID, "more"},
		{FileCtlCharUUID, "end"},
		{FileCtlCharUUID, "delete:old.wav"},
	}
	for _, s := range steps {
		if err := h.HandleWrite(s.uuid, []byte(s.data)); err != nil {
			t.Fatalf("HandleWrite(%q) error = %v", s.data, err)
		}
	}
	if d.uploadName != "birds.mp3" || string(d.upload) != "ID3more" {
		t.Errorf("upload = %s %q", d.uploadName, d.upload)
	}
	if len(d.deleted) != 1 || d.deleted[0] != "old.wav" {
		t.Errorf("deleted = %v", d.deleted)
	}
	if err := h.HandleWrite(FileCtlCharUUID, []byte("rename")); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("bad file command error = %v, want ErrInvalidValue", err)
	}
}

func TestReadOnlyAndUnknown(t *testing.T) {
	h, _ := newTestHandler()
	if err := h.HandleWrite(StatusCharUUID, []byte("x")); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("write to status error = %v", err)
	}
	if err := h.HandleWrite("00000000-0000-0000-0000-000000000000", nil); !errors.Is(err, ErrUnknownCharacteristic) {
		t.Errorf("unknown uuid error = %v", err)
	}
	if _, err := h.ReadValue(FileDataCharUUID); !errors.Is(err, ErrUnknownCharacteristic) {
		t.Errorf("read file data error = %v", err)
	}
}

func TestStatusReadFramesForLargeValues(t *testing.T) {
	h, d := newTestHandler()
	for i := 0; i < alarm.MaxAlarms; i++ {
		d.alarms[i] = alarm.Record{ID: i, Hour: 7, Sound: "a-very-long-sound-file-name.mp3", Label: "Label for alarm"}
	}
	v, _ := h.ReadValue(AlarmListCharUUID)
	frames, err := protocol.Frames(v, 64)
	if err != nil {
		t.Fatalf("Frames() error = %v", err)
	}
	var got []byte
	for i, f := range frames {
		if len(f) > 64 || int(f[0]) != i || int(f[1]) != len(frames) {
			t.Fatalf("frame %d: %d bytes, header [%d %d]", i, len(f), f[0], f[1])
		}
		got = append(got, f[protocol.FrameHeader:]...)
	}
	if string(got) != string(v) {
		t.Errorf("alarm list did not survive framing: %q", got)
	}
}

func TestExecutorIsUsed(t *testing.T) {
	d := newFakeDevice()
	calls := 0
	exec := func(ctx context.Context, fn func() error) error {
		calls++
		if _, ok := ctx.Deadline(); !ok {
			t.Error("executor context has no deadline")
		}
		return fn()
	}
	h := NewHandler(d, exec, time.Second)
	h.HandleWrite(VolumeCharUUID, []byte{5})
	h.Connected(true)
	if calls != 2 || !d.connected {
		t.Errorf("executor calls = %d, connected = %v", calls, d.connected)
	}

	busy := func(ctx context.Context, fn func() error) error { return context.DeadlineExceeded }
	h = NewHandler(d, busy, time.Millisecond)
	if err := h.HandleWrite(VolumeCharUUID, []byte{9}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("busy executor error = %v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	delays := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, want := range delays {
		if got := backoffDelay(i, 30); got != want*time.Second {
			t.Errorf("backoffDelay(%d, 30) = %v, want %v", i, got, want*time.Second)
		}
	}
}
