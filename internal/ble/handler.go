package ble

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chaz8081/bedclock/internal/alarm"
	"github.com/chaz8081/bedclock/internal/ble/protocol"
)

// ErrUnknownCharacteristic is returned for UUIDs outside the service.
var ErrUnknownCharacteristic = errors.New("ble: unknown characteristic")

// ErrInvalidValue is returned for writes that cannot be parsed.
var ErrInvalidValue = errors.New("ble: invalid value")

// ErrUnsupported is returned by Server.Start on platforms without a BLE
// peripheral implementation.
var ErrUnsupported = errors.New("ble: peripheral mode is only supported on linux")

// StopSound is the test sound value that stops playback.
const StopSound = "stop"

// Handler decodes characteristic writes and applies them to a Device
// through an Executor. Parsing happens on the caller's goroutine; only
// the state change is handed to the executor.
type Handler struct {
	dev     Device
	exec    Executor
	timeout time.Duration
}

// NewHandler returns a handler that waits at most timeout for each
// executed command.
func NewHandler(dev Device, exec Executor, timeout time.Duration) *Handler {
	if exec == nil {
		exec = Direct
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handler{dev: dev, exec: exec, timeout: timeout}
}

func (h *Handler) run(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.exec(ctx, fn)
}

// alarmRequest is the alarm set payload. Omitted fields take the
// defaults a new alarm gets.
type alarmRequest struct {
	ID             *int    `json:"id"`
	Hour           *int    `json:"hour"`
	Minute         *int    `json:"minute"`
	Days           *uint8  `json:"days"`
	DayNames       string  `json:"dayNames"`
	Enabled        *bool   `json:"enabled"`
	Sound          *string `json:"sound"`
	Label          *string `json:"label"`
	Snooze         *bool   `json:"snooze"`
	BottomRowLabel *string `json:"bottomRowLabel"`
}

// ParseAlarm decodes an alarm set payload into a record.
func ParseAlarm(data []byte) (alarm.Record, error) {
	var req alarmRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return alarm.Record{}, fmt.Errorf("%w: alarm json: %v", ErrInvalidValue, err)
	}
	if req.ID == nil || req.Hour == nil || req.Minute == nil {
		return alarm.Record{}, fmt.Errorf("%w: alarm needs id, hour and minute", ErrInvalidValue)
	}
	rec := alarm.Record{
		ID:            *req.ID,
		Hour:          *req.Hour,
		Minute:        *req.Minute,
		Enabled:       true,
		Sound:         alarm.DefaultSound,
		Label:         alarm.DefaultLabel,
		SnoozeEnabled: true,
	}
	switch {
	case req.Days != nil:
		rec.Days = alarm.Weekdays(*req.Days)
	case req.DayNames != "":
		d, err := alarm.ParseWeekdays(req.DayNames)
		if err != nil {
			return alarm.Record{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		rec.Days = d
	}
	if req.Enabled != nil {
		rec.Enabled = *req.Enabled
	}
	if req.Sound != nil && *req.Sound != "" {
		rec.Sound = *req.Sound
	}
	if req.Label != nil && *req.Label != "" {
		rec.Label = *req.Label
	}
	if req.Snooze != nil {
		rec.SnoozeEnabled = *req.Snooze
	}
	if req.BottomRowLabel != nil {
		rec.BottomRowLabel = *req.BottomRowLabel
	}
	if err := rec.Validate(); err != nil {
		return alarm.Record{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return rec, nil
}

// HandleWrite applies a write to the characteristic uuid.
func (h *Handler) HandleWrite(uuid string, data []byte) error {
	uuid = strings.ToLower(uuid)
	switch uuid {
	case TimeCharUUID:
		if len(data) < 4 {
			return fmt.Errorf("%w: timestamp needs 4 bytes, got %d", ErrInvalidValue, len(data))
		}
		ts := time.Unix(int64(binary.LittleEndian.Uint32(data)), 0)
		slog.Info("[BLE] time sync", "timestamp", ts.Unix())
		return h.run(func() error { h.dev.SetTime(ts); return nil })

	case DateTimeCharUUID:
		s := strings.TrimSpace(string(data))
		return h.run(func() error { return h.dev.SetDateTime(s) })

	case VolumeCharUUID:
		if len(data) != 1 {
			return fmt.Errorf("%w: volume is 1 byte", ErrInvalidValue)
		}
		v := min(int(data[0]), 100)
		return h.run(func() error { h.dev.SetVolume(v); return nil })

	case TestSoundCharUUID:
		name := strings.TrimSpace(string(data))
		if name == "" {
			return fmt.Errorf("%w: empty sound name", ErrInvalidValue)
		}
		if name == StopSound {
			return h.run(h.dev.StopSound)
		}
		return h.run(func() error { return h.dev.PlayTestSound(name) })

	case MessageCharUUID:
		msg := strings.TrimRight(string(data), "\x00\r\n")
		return h.run(func() error { return h.dev.SetMessage(msg) })

	case AlarmSetCharUUID:
		rec, err := ParseAlarm(data)
		if err != nil {
			return err
		}
		slog.Info("[BLE] set alarm", "id", rec.ID, "time", rec.TimeString(), "days", rec.Days)
		return h.run(func() error { return h.dev.SetAlarm(rec) })

	case AlarmDelCharUUID:
		if len(data) != 1 {
			return fmt.Errorf("%w: alarm id is 1 byte", ErrInvalidValue)
		}
		id := int(data[0])
		return h.run(func() error { return h.dev.DeleteAlarm(id) })

	case BrightnessCharUUID:
		if len(data) != 1 {
			return fmt.Errorf("%w: brightness is 1 byte", ErrInvalidValue)
		}
		v := min(int(data[0]), 100)
		return h.run(func() error { return h.dev.SetBrightness(v) })

	case FileCtlCharUUID:
		op, name, err := protocol.ParseFileControl(string(data))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return h.run(func() error { return h.fileControl(op, name) })

	case FileDataCharUUID:
		if len(data) == 0 {
			return nil
		}
		chunk := append([]byte(nil), data...)
		return h.run(func() error { return h.dev.WriteUpload(chunk) })

	case AlarmListCharUUID, StatusCharUUID:
		return fmt.Errorf("%w: %s is read-only", ErrInvalidValue, uuid)
	}
	return fmt.Errorf("%w: %s", ErrUnknownCharacteristic, uuid)
}

func (h *Handler) fileControl(op protocol.FileOp, name string) error {
	switch op {
	case protocol.FileStart:
		return h.dev.BeginUpload(name)
	case protocol.FileEnd:
		n, err := h.dev.EndUpload()
		if err == nil {
			slog.Info("[BLE] upload finished", "bytes", n)
		}
		return err
	case protocol.FileAbort:
		h.dev.AbortUpload()
		return nil
	case protocol.FileDelete:
		return h.dev.DeleteFile(name)
	}
	return fmt.Errorf("%w: file op %v", ErrInvalidValue, op)
}

// ReadValue returns the current value of a readable characteristic.
func (h *Handler) ReadValue(uuid string) ([]byte, error) {
	var out []byte
	err := h.run(func() error {
		var err error
		out, err = h.readLocked(strings.ToLower(uuid))
		return err
	})
	return out, err
}

func (h *Handler) readLocked(uuid string) ([]byte, error) {
	switch uuid {
	case TimeCharUUID:
		b := make([]byte, 4)
		ts, err := time.Parse(time.RFC3339, h.dev.Status().Time)
		if err == nil {
			binary.LittleEndian.PutUint32(b, uint32(ts.Unix()))
		}
		return b, nil
	case DateTimeCharUUID:
		ts, err := time.Parse(time.RFC3339, h.dev.Status().Time)
		if err != nil {
			return nil, nil
		}
		return []byte(ts.Format("2006-01-02 15:04:05")), nil
	case VolumeCharUUID:
		return []byte{byte(h.dev.Volume())}, nil
	case BrightnessCharUUID:
		return []byte{byte(h.dev.Brightness())}, nil
	case MessageCharUUID:
		return []byte(h.dev.Message()), nil
	case AlarmListCharUUID:
		recs := h.dev.Alarms()
		if recs == nil {
			recs = []alarm.Record{}
		}
		return json.Marshal(recs)
	case StatusCharUUID:
		return json.Marshal(h.dev.Status())
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCharacteristic, uuid)
}

// Connected records a central connecting or leaving.
func (h *Handler) Connected(connected bool) {
	if err := h.run(func() error { h.dev.SetConnected(connected); return nil }); err != nil {
		slog.Warn("[BLE] connection state not delivered", "connected", connected, "error", err)
	}
}
