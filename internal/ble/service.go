// Package ble exposes the clock's settings as a BLE GATT service: time
// sync, alarms, volume, brightness, display message and sound uploads.
package ble

import (
	"context"
	"time"

	"github.com/chaz8081/bedclock/internal/alarm"
)

// Service and characteristic UUIDs.
const (
	ServiceUUID        = "12340000-1234-5678-1234-56789abcdef0"
	TimeCharUUID       = "12340001-1234-5678-1234-56789abcdef0"
	DateTimeCharUUID   = "12340002-1234-5678-1234-56789abcdef0"
	VolumeCharUUID     = "12340003-1234-5678-1234-56789abcdef0"
	TestSoundCharUUID  = "12340004-1234-5678-1234-56789abcdef0"
	MessageCharUUID    = "12340005-1234-5678-1234-56789abcdef0"
	AlarmSetCharUUID   = "12340006-1234-5678-1234-56789abcdef0"
	AlarmListCharUUID  = "12340007-1234-5678-1234-56789abcdef0"
	AlarmDelCharUUID   = "12340008-1234-5678-1234-56789abcdef0"
	BrightnessCharUUID = "12340009-1234-5678-1234-56789abcdef0"
	FileCtlCharUUID    = "1234000a-1234-5678-1234-56789abcdef0"
	FileDataCharUUID   = "1234000b-1234-5678-1234-56789abcdef0"
	StatusCharUUID     = "1234000c-1234-5678-1234-56789abcdef0"
)

// Access describes what a central may do with a characteristic.
type Access uint8

const (
	Read Access = 1 << iota
	Write
	Notify
)

// CharSpec describes one characteristic of the service.
type CharSpec struct {
	UUID   string
	Name   string
	Access Access
}

// Characteristics lists the service layout.
var Characteristics = []CharSpec{
	{TimeCharUUID, "time", Read | Write},
	{DateTimeCharUUID, "datetime", Read | Write},
	{VolumeCharUUID, "volume", Read | Write},
	{TestSoundCharUUID, "test sound", Write},
	{MessageCharUUID, "display message", Read | Write},
	{AlarmSetCharUUID, "alarm set", Write},
	{AlarmListCharUUID, "alarm list", Read | Notify},
	{AlarmDelCharUUID, "alarm delete", Write},
	{BrightnessCharUUID, "brightness", Read | Write},
	{FileCtlCharUUID, "file control", Write},
	{FileDataCharUUID, "file data", Write},
	{StatusCharUUID, "status", Read | Notify},
}

// Status is the JSON document served on the status characteristic.
type Status struct {
	Time       string `json:"time"`
	Synced     bool   `json:"synced"`
	Ringing    bool   `json:"ringing"`
	Snoozed    bool   `json:"snoozed"`
	Volume     int    `json:"volume"`
	Brightness int    `json:"brightness"`
	Alarms     int    `json:"alarms"`
	Uploading  string `json:"uploading,omitempty"`
	FreeBytes  int64  `json:"freeBytes"`
}

// Device is the clock as seen from the BLE service. Methods are only ever
// called through the Handler's Executor, so implementations may assume a
// single caller.
type Device interface {
	SetTime(t time.Time)
	SetDateTime(s string) error
	SetVolume(v int)
	Volume() int
	PlayTestSound(name string) error
	StopSound() error
	SetMessage(msg string) error
	Message() string
	SetAlarm(rec alarm.Record) error
	DeleteAlarm(id int) error
	Alarms() []alarm.Record
	SetBrightness(percent int) error
	Brightness() int
	BeginUpload(name string) error
	WriteUpload(data []byte) error
	EndUpload() (int64, error)
	AbortUpload()
	DeleteFile(name string) error
	SetConnected(connected bool)
	Status() Status
}

// Executor runs fn on the goroutine that owns the device and returns its
// error. ctx bounds the wait.
type Executor func(ctx context.Context, fn func() error) error

// Direct runs fn on the calling goroutine. It suits tests and devices that
// do their own locking.
func Direct(_ context.Context, fn func() error) error { return fn() }
