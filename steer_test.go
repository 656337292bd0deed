package steer

import "testing"

func TestBitSetBasics(t *testing.T) {
	m := NewBitSet(100)
	m.Set(0)
	m.Set(63)
	m.Set(64)
	m.Set(99)
	m.Set(200) // out of range, ignored
	if m.Count() != 4 {
		t.Errorf("expected 4 allowed tokens, got %d", m.Count())
	}
	if !m.IsAllowed(63) || m.IsAllowed(62) || m.IsAllowed(200) {
		t.Errorf("membership broken")
	}
	m.Clear(63)
	if m.IsAllowed(63) || m.Count() != 3 {
		t.Errorf("clear broken")
	}
}

func TestBitSetSingleton(t *testing.T) {
	m := NewBitSet(300)
	if _, ok := m.Singleton(); ok {
		t.Errorf("empty mask is not a singleton")
	}
	m.Set(257)
	if tok, ok := m.Singleton(); !ok || tok != 257 {
		t.Errorf("expected singleton 257, got %d/%v", tok, ok)
	}
	m.Set(3)
	if _, ok := m.Singleton(); ok {
		t.Errorf("two-token mask is not a singleton")
	}
}

func TestBitSetSerialization(t *testing.T) {
	// bit i lands in byte i/8 at bit position i%8, little-endian
	m := NewBitSet(20)
	m.Set(0)
	m.Set(9)
	m.Set(19)
	buf := m.Bytes()
	if len(buf) != 3 {
		t.Fatalf("20 bits should pack into 3 bytes, got %d", len(buf))
	}
	if buf[0] != 0x01 || buf[1] != 0x02 || buf[2] != 0x08 {
		t.Errorf("little-endian packing broken: % x", buf)
	}
}

func TestErrorKinds(t *testing.T) {
	err := WrapError(ParserLimitsExceeded, "too many %s", "items")
	if err.Error() != "ParserLimitsExceeded: too many items" {
		t.Errorf("unexpected error text %q", err.Error())
	}
	if !err.Is(WrapError(ParserLimitsExceeded, "")) {
		t.Errorf("errors of the same kind should match")
	}
	if err.Is(WrapError(InternalError, "")) {
		t.Errorf("errors of different kinds should not match")
	}
}

func TestStepShapes(t *testing.T) {
	m := NewBitSet(10)
	m.Set(1)
	if s := MaskStep(m, 0.5); s.IsStop() || s.IsSplice() {
		t.Errorf("mask step misclassified: %s", s)
	}
	if s := SpliceStep(0, []TokenId{1, 2}); !s.IsSplice() || s.IsStop() {
		t.Errorf("splice step misclassified: %s", s)
	}
	if s := StopStep(StopAccept); !s.IsStop() {
		t.Errorf("stop step misclassified: %s", s)
	}
}
