// Package mqtt publishes alarm events and periodic device status.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultTopicPrefix roots every topic the clock publishes.
const DefaultTopicPrefix = "bedclock"

// Alarm event names.
const (
	EventRinging   = "RINGING"
	EventSnoozed   = "SNOOZED"
	EventDismissed = "DISMISSED"
	EventTimeout   = "TIMEOUT"
)

// Publisher publishes clock telemetry.
type Publisher interface {
	// PublishAlarm sends an alarm transition. It must not block the caller
	// on the network.
	PublishAlarm(event AlarmEvent) error

	// PublishStatus sends a status snapshot.
	PublishStatus(status Status) error

	// Close disconnects from the broker.
	Close() error
}

// AlarmEvent is one alarm transition.
type AlarmEvent struct {
	Timestamp time.Time
	Event     string
	AlarmID   int
	Label     string
	Sound     string
	// Until is the snooze target as HH:MM, set on EventSnoozed.
	Until   string
	Resumed bool
}

// Status is a periodic device snapshot.
type Status struct {
	Timestamp     time.Time
	Ringing       bool
	Snoozed       bool
	Volume        int
	Brightness    int
	TimeSynced    bool
	EnabledAlarms int
	NextAlarm     string
}

// AlarmTopic returns the topic for an alarm event, e.g. bedclock/alarm/ringing.
func AlarmTopic(prefix, event string) string {
	return prefix + "/alarm/" + strings.ToLower(event)
}

// StatusTopic returns the status topic.
func StatusTopic(prefix string) string {
	return prefix + "/status"
}

// AlarmPayload is the JSON body of an alarm event.
type AlarmPayload struct {
	Alarm AlarmPayloadInner `json:"alarm"`
}

// AlarmPayloadInner contains the alarm event details.
type AlarmPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	ID        int    `json:"id"`
	Label     string `json:"label,omitempty"`
	Sound     string `json:"sound,omitempty"`
	Until     string `json:"until,omitempty"`
	Resumed   bool   `json:"resumed,omitempty"`
}

// FormatAlarmPayload creates the JSON payload for an alarm event.
func FormatAlarmPayload(e AlarmEvent) ([]byte, error) {
	return json.Marshal(AlarmPayload{
		Alarm: AlarmPayloadInner{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Event:     e.Event,
			ID:        e.AlarmID,
			Label:     e.Label,
			Sound:     e.Sound,
			Until:     e.Until,
			Resumed:   e.Resumed,
		},
	})
}

// StatusPayload is the JSON body of a status snapshot.
type StatusPayload struct {
	Timestamp     string `json:"timestamp"`
	Ringing       bool   `json:"ringing"`
	Snoozed       bool   `json:"snoozed"`
	Volume        int    `json:"volume"`
	Brightness    int    `json:"brightness"`
	TimeSynced    bool   `json:"timeSynced"`
	EnabledAlarms int    `json:"enabledAlarms"`
	NextAlarm     string `json:"nextAlarm,omitempty"`
}

// FormatStatusPayload creates the JSON payload for a status snapshot.
func FormatStatusPayload(s Status) ([]byte, error) {
	return json.Marshal(StatusPayload{
		Timestamp:     s.Timestamp.UTC().Format(time.RFC3339),
		Ringing:       s.Ringing,
		Snoozed:       s.Snoozed,
		Volume:        s.Volume,
		Brightness:    s.Brightness,
		TimeSynced:    s.TimeSynced,
		EnabledAlarms: s.EnabledAlarms,
		NextAlarm:     s.NextAlarm,
	})
}

// Nop discards everything. It is used when MQTT is disabled.
type Nop struct{}

func (Nop) PublishAlarm(AlarmEvent) error { return nil }
func (Nop) PublishStatus(Status) error    { return nil }
func (Nop) Close() error                  { return nil }
