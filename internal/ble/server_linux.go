//go:build linux

package ble

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/chaz8081/bedclock/internal/ble/protocol"
)

// Server advertises the clock service on the default BlueZ adapter.
type Server struct {
	h    *Handler
	name string
	mtu  int

	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement

	mu    sync.Mutex
	chars map[string]*bluetooth.Characteristic

	connected atomic.Int32
}

// NewServer returns a server named name. mtu bounds each characteristic
// value; larger reads are framed with the protocol package.
func NewServer(h *Handler, name string, mtu int) *Server {
	if mtu <= protocol.FrameHeader {
		mtu = protocol.DefaultMTU
	}
	return &Server{
		h:       h,
		name:    name,
		mtu:     mtu,
		adapter: bluetooth.DefaultAdapter,
		chars:   make(map[string]*bluetooth.Characteristic),
	}
}

// Start enables the adapter, registers the service and begins advertising.
func (s *Server) Start() error {
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	svcUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return fmt.Errorf("ble: parse service UUID: %w", err)
	}

	configs := make([]bluetooth.CharacteristicConfig, 0, len(Characteristics))
	for _, spec := range Characteristics {
		uuid, err := bluetooth.ParseUUID(spec.UUID)
		if err != nil {
			return fmt.Errorf("ble: parse %s UUID: %w", spec.Name, err)
		}
		handle := new(bluetooth.Characteristic)
		s.chars[spec.UUID] = handle

		cfg := bluetooth.CharacteristicConfig{
			Handle: handle,
			UUID:   uuid,
			Flags:  permissions(spec.Access),
		}
		if spec.Access&Write != 0 {
			charUUID := spec.UUID
			name := spec.Name
			cfg.WriteEvent = func(_ bluetooth.Connection, offset int, value []byte) {
				if offset != 0 {
					return
				}
				if err := s.h.HandleWrite(charUUID, value); err != nil {
					slog.Warn("[BLE] write rejected", "characteristic", name, "error", err)
					return
				}
				s.Refresh()
			}
		}
		configs = append(configs, cfg)
	}

	if err := s.adapter.AddService(&bluetooth.Service{UUID: svcUUID, Characteristics: configs}); err != nil {
		return fmt.Errorf("ble: add service: %w", err)
	}

	s.adapter.SetConnectHandler(func(_ bluetooth.Device, connected bool) {
		if connected {
			n := s.connected.Add(1)
			slog.Info("[BLE] central connected", "connections", n)
			s.h.Connected(true)
			return
		}
		if s.connected.Add(-1) <= 0 {
			s.connected.Store(0)
			s.h.Connected(false)
		}
		slog.Info("[BLE] central disconnected, advertising again")
		go s.advertise()
	})

	s.adv = s.adapter.DefaultAdvertisement()
	if err := s.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    s.name,
		ServiceUUIDs: []bluetooth.UUID{svcUUID},
	}); err != nil {
		return fmt.Errorf("ble: configure advertisement: %w", err)
	}
	if err := s.adv.Start(); err != nil {
		return fmt.Errorf("ble: start advertising: %w", err)
	}
	s.Refresh()
	slog.Info("[BLE] advertising", "name", s.name, "service", ServiceUUID)
	return nil
}

// advertise restarts advertising with backoff until it succeeds.
func (s *Server) advertise() {
	for attempt := 0; ; attempt++ {
		err := s.adv.Start()
		if err == nil {
			return
		}
		delay := backoffDelay(attempt, 30)
		slog.Warn("[BLE] advertising restart failed", "error", err, "retry_in", delay)
		time.Sleep(delay)
	}
}

func permissions(a Access) bluetooth.CharacteristicPermissions {
	var p bluetooth.CharacteristicPermissions
	if a&Read != 0 {
		p |= bluetooth.CharacteristicReadPermission
	}
	if a&Write != 0 {
		p |= bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission
	}
	if a&Notify != 0 {
		p |= bluetooth.CharacteristicNotifyPermission
	}
	return p
}

// Refresh republishes every readable value. Values longer than the MTU
// are sent as a sequence of frames, the last one remaining readable.
func (s *Server) Refresh() {
	for _, spec := range Characteristics {
		if spec.Access&Read == 0 {
			continue
		}
		value, err := s.h.ReadValue(spec.UUID)
		if err != nil {
			slog.Debug("[BLE] read value", "characteristic", spec.Name, "error", err)
			continue
		}
		s.publish(spec, value)
	}
}

func (s *Server) publish(spec CharSpec, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle := s.chars[spec.UUID]
	if handle == nil {
		return
	}
	if len(value) <= s.mtu && spec.Access&Notify == 0 {
		handle.Write(value)
		return
	}
	frames, err := protocol.Frames(value, s.mtu)
	if err != nil {
		slog.Warn("[BLE] value too large", "characteristic", spec.Name, "bytes", len(value), "error", err)
		return
	}
	for _, f := range frames {
		if _, err := handle.Write(f); err != nil {
			slog.Debug("[BLE] notify", "characteristic", spec.Name, "error", err)
			return
		}
	}
}

// Connected reports whether any central is connected.
func (s *Server) Connected() bool {
	return s.connected.Load() > 0
}

// Stop ends advertising.
func (s *Server) Stop() error {
	if s.adv == nil {
		return nil
	}
	if err := s.adv.Stop(); err != nil {
		return fmt.Errorf("ble: stop advertising: %w", err)
	}
	return nil
}
