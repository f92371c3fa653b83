package mqtt

import "sync"

// FakePublisher records published messages for test assertions. It is
// safe for concurrent use.
type FakePublisher struct {
	mu       sync.Mutex
	alarms   []AlarmEvent
	statuses []Status
	closed   bool

	// PublishError, if set, is returned by every publish call.
	PublishError error
}

// NewFakePublisher creates a FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishAlarm records the alarm event.
func (f *FakePublisher) PublishAlarm(e AlarmEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.alarms = append(f.alarms, e)
	return nil
}

// PublishStatus records the status snapshot.
func (f *FakePublisher) PublishStatus(s Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.statuses = append(f.statuses, s)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Alarms returns a copy of the recorded alarm events.
func (f *FakePublisher) Alarms() []AlarmEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AlarmEvent(nil), f.alarms...)
}

// Statuses returns a copy of the recorded status snapshots.
func (f *FakePublisher) Statuses() []Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Status(nil), f.statuses...)
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
