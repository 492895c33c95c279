package denunciation

import "testing"

func TestUvarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 32, ^uint64(0)} {
		buf := putUvarint(nil, v)
		got, n, err := takeUvarint(buf)
		if err != nil {
			t.Fatalf("takeUvarint(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: got %d, want %d", got, v)
		}
		if n != len(buf) {
			t.Fatalf("expected to consume all %d bytes, consumed %d", len(buf), n)
		}
	}
}

func TestTakeUvarintTruncatedBuffer(t *testing.T) {
	if _, _, err := takeUvarint(nil); err == nil {
		t.Fatalf("expected error for empty buffer")
	}
}

func TestBoundContains(t *testing.T) {
	inclusive := bound{lower: 1, upper: 10, upperExclusive: false}
	if !inclusive.contains(10) {
		t.Fatalf("expected inclusive bound to contain its upper value")
	}
	if inclusive.contains(11) {
		t.Fatalf("expected inclusive bound to reject beyond its upper value")
	}
	if inclusive.contains(0) {
		t.Fatalf("expected bound to reject below its lower value")
	}

	exclusive := bound{lower: 0, upper: 10, upperExclusive: true}
	if exclusive.contains(10) {
		t.Fatalf("expected exclusive bound to reject its upper value")
	}
	if !exclusive.contains(9) {
		t.Fatalf("expected exclusive bound to contain just below its upper value")
	}
}

func TestSlotSerDer(t *testing.T) {
	s := NewSlot(12345, 7)
	buf := slotSerializer{}.serialize(s, nil)
	got, n, err := newSlotDeserializer(32).deserialize(buf)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got != s {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, s)
	}
	if n != len(buf) {
		t.Fatalf("expected to consume all %d bytes, consumed %d", len(buf), n)
	}
}

func TestSlotDeserializerRejectsOutOfBoundThread(t *testing.T) {
	s := Slot{Period: 1, Thread: 5}
	buf := slotSerializer{}.serialize(s, nil)
	if _, _, err := newSlotDeserializer(5).deserialize(buf); err == nil {
		t.Fatalf("expected thread 5 to be rejected by bound [0,5)")
	}
}
