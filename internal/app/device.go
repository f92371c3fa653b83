package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/bedclock/internal/alarm"
	"github.com/chaz8081/bedclock/internal/audio"
	"github.com/chaz8081/bedclock/internal/ble"
	"github.com/chaz8081/bedclock/internal/files"
)

// The methods below make App a ble.Device. They run on the loop
// goroutine through Exec.
var _ ble.Device = (*App)(nil)

func (a *App) SetTime(t time.Time) {
	a.deps.Clock.Set(t)
}

func (a *App) SetDateTime(s string) error {
	return a.deps.Clock.SetDateTime(s)
}

// SetVolume applies and persists the volume.
func (a *App) SetVolume(v int) {
	v = a.deps.Audio.SetVolume(v)
	if err := a.deps.Settings.PutByte(prefVolume, byte(v)); err != nil {
		slog.Warn("[APP] volume not persisted", "error", err)
	}
	slog.Info("[AUDIO] volume set", "volume", v)
}

func (a *App) Volume() int { return a.deps.Audio.Volume() }

// PlayTestSound plays a built-in tone for a few seconds or a stored file
// once.
func (a *App) PlayTestSound(name string) error {
	if a.engine.IsRinging() {
		return ErrRinging
	}
	if p, ok := audio.BuiltinTone(name); ok {
		if err := a.deps.Audio.Stop(); err != nil {
			return fmt.Errorf("app: stopping playback: %w", err)
		}
		a.tones.Play(p, a.opts.TestToneLength)
		return nil
	}
	a.tones.Stop()
	return a.deps.Audio.PlayFile(name, false)
}

// StopSound ends a test sound. It does not silence a ringing alarm.
func (a *App) StopSound() error {
	if a.engine.IsRinging() {
		return ErrRinging
	}
	a.tones.Stop()
	return a.deps.Audio.Stop()
}

func (a *App) SetMessage(msg string) error { return a.deps.Display.SetMessage(msg) }
func (a *App) Message() string { return a.deps.Display.Message() }

func (a *App) SetAlarm(rec alarm.Record) error { return a.deps.Alarms.Set(rec) }
func (a *App) DeleteAlarm(id int) error { return a.deps.Alarms.Delete(id) }
func (a *App) Alarms() []alarm.Record { return a.deps.Alarms.All() }

func (a *App) SetBrightness(percent int) error { return a.deps.Light.SetBrightness(percent) }
func (a *App) Brightness() int { return a.deps.Light.Brightness() }

func (a *App) BeginUpload(name string) error { return a.deps.Files.Create(name) }
func (a *App) WriteUpload(data []byte) error { return a.deps.Files.WriteChunk(data) }
func (a *App) EndUpload() (int64, error) { return a.deps.Files.Commit() }
func (a *App) AbortUpload() { a.deps.Files.Abort() }

// DeleteFile removes a stored sound, stopping it first if it is playing.
// Alarms that still name it fall back to the default tone when they ring.
func (a *App) DeleteFile(name string) error {
	if a.deps.Audio.CurrentFile() == name {
		if err := a.deps.Audio.Stop(); err != nil {
			return fmt.Errorf("app: stopping %s: %w", name, err)
		}
	}
	if err := a.deps.Files.Remove(name); err != nil {
		return err
	}
	for _, r := range a.deps.Alarms.All() {
		if r.Sound == name {
			slog.Warn("[FILES] deleted sound still used by alarm", "name", name, "id", r.ID)
		}
	}
	return nil
}

func (a *App) SetConnected(connected bool) {
	a.bleConnected = connected
	slog.Info("[BLE] connection changed", "connected", connected)
}

// Status returns the snapshot served on the status characteristic.
func (a *App) Status() ble.Status {
	free, err := a.deps.Files.FreeSpace()
	if err != nil {
		free = 0
	}
	return ble.Status{
		Time:       a.deps.Clock.Now().Format(time.RFC3339),
		Synced:     a.deps.Clock.IsSynced(),
		Ringing:    a.engine.IsRinging(),
		Snoozed:    a.engine.IsSnoozed(),
		Volume:     a.deps.Audio.Volume(),
		Brightness: a.deps.Light.Brightness(),
		Alarms:     a.deps.Alarms.Len(),
		Uploading:  a.deps.Files.Uploading(),
		FreeBytes:  free,
	}
}

// Stored sounds are played straight from the file store.
var _ audio.FileSource = (*files.Store)(nil)
