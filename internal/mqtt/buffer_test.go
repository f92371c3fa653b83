package mqtt

import "testing"

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	if got := rb.drainAll(); got != nil {
		t.Errorf("drainAll() on empty buffer = %d items, want nil", len(got))
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	if rb.len() != 5 {
		t.Errorf("len() = %d, want 5", rb.len())
	}

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("drainAll() = %d items, want 5", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: payload = %d, want %d", i, got[i].payload[0], i)
		}
	}
	if rb.drainAll() != nil || rb.len() != 0 {
		t.Error("buffer not empty after drain")
	}
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)
	for i := 0; i < 8; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("drainAll() = %d items, want 5", len(got))
	}
	for i := range got {
		if want := byte(i + 3); got[i].payload[0] != want {
			t.Errorf("item %d: payload = %d, want %d", i, got[i].payload[0], want)
		}
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{topic: "bedclock/status", payload: []byte(`{}`), qos: 1, retained: true})
	got := rb.drainAll()
	if got[0].topic != "bedclock/status" || got[0].qos != 1 || !got[0].retained {
		t.Errorf("drained = %+v", got[0])
	}
}
