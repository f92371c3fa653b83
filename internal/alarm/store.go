package alarm

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/chaz8081/bedclock/internal/kv"
)

// Namespace is the KV namespace alarm records live in.
const Namespace = "alarms"

var (
	ErrInvalidID = errors.New("alarm: invalid id")
	ErrNotFound  = errors.New("alarm: not found")

	// ErrPersist is wrapped when the in-memory change succeeded but the
	// durable write did not. The next successful write reconciles storage.
	ErrPersist = errors.New("alarm: persist failed")
)

// Store is the ordered, persisted collection of alarm records. It expects a
// single writer; the lock only protects readers on other goroutines.
type Store struct {
	prefs *kv.Prefs

	mu     sync.RWMutex
	alarms []Record
	dirty  bool // last durable write failed
}

// NewStore returns an empty store backed by prefs. Call Load to read
// existing records.
func NewStore(prefs *kv.Prefs) *Store {
	return &Store{prefs: prefs}
}

func recordKey(id int) string {
	return "alarm_" + strconv.Itoa(id)
}

// Load replaces the in-memory list with the records found in storage, in
// ID order. Records that cannot be decoded are skipped and logged.
func (s *Store) Load() error {
	var loaded []Record
	for id := 0; id < MaxAlarms; id++ {
		data, ok, err := s.prefs.Lookup(recordKey(id))
		if err != nil {
			return fmt.Errorf("alarm: load %s: %w", recordKey(id), err)
		}
		if !ok || data == "" {
			continue
		}
		rec, err := Decode(id, data)
		if err != nil {
			slog.Warn("[ALARM] skipping unreadable record", "key", recordKey(id), "error", err)
			continue
		}
		loaded = append(loaded, rec)
	}

	s.mu.Lock()
	s.alarms = loaded
	s.dirty = false
	s.mu.Unlock()

	slog.Info("[ALARM] loaded alarms", "count", len(loaded))
	return nil
}

// Set validates rec and inserts it, or overwrites the record with the same
// ID in place. The change is written through before returning.
func (s *Store) Set(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.alarms {
		if s.alarms[i].ID == rec.ID {
			s.alarms[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.alarms = append(s.alarms, rec)
	}
	slog.Debug("[ALARM] set", "id", rec.ID, "time", rec.TimeString(), "days", rec.Days.String(), "replaced", replaced)

	return s.persistLocked(rec.ID)
}

// Delete removes the record from memory and storage.
func (s *Store) Delete(id int) error {
	if id < 0 || id >= MaxAlarms {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.alarms = append(s.alarms[:idx], s.alarms[idx+1:]...)
	slog.Debug("[ALARM] deleted", "id", id)

	return s.persistLocked(id)
}

// MarkFired disables a one-shot alarm for good and persists the change.
func (s *Store) MarkFired(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.alarms[idx].Enabled = false
	s.alarms[idx].PermanentlyDisabled = true
	return s.persistLocked(id)
}

// Get returns a copy of the record with the given ID.
func (s *Store) Get(id int) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.alarms[idx], true
	}
	return Record{}, false
}

// All returns a snapshot of every record in list order.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.alarms))
	copy(out, s.alarms)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alarms)
}

// HasEnabled reports whether any record is enabled.
func (s *Store) HasEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alarms {
		if a.Enabled {
			return true
		}
	}
	return false
}

func (s *Store) indexLocked(id int) int {
	for i := range s.alarms {
		if s.alarms[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the slot for id. After an earlier failure every
// slot is rewritten instead so storage converges on memory.
func (s *Store) persistLocked(id int) error {
	var err error
	if s.dirty {
		err = s.flushLocked()
	} else {
		err = s.writeSlotLocked(id)
	}
	if err != nil {
		s.dirty = true
		slog.Error("[ALARM] persisting alarms failed, keeping in-memory state", "id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.dirty = false
	return nil
}

func (s *Store) writeSlotLocked(id int) error {
	if idx := s.indexLocked(id); idx >= 0 {
		return s.prefs.PutString(recordKey(id), Encode(s.alarms[idx]))
	}
	return s.prefs.Remove(recordKey(id))
}

func (s *Store) flushLocked() error {
	var errs []error
	for id := 0; id < MaxAlarms; id++ {
		if err := s.writeSlotLocked(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
