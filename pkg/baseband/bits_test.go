package baseband

import (
	"bytes"
	"errors"
	"testing"
)

func TestAirToHostRoundTrip(t *testing.T) {
	tests := []struct {
		value uint32
		width int
	}{
		{0, 1}, {1, 1}, {0x5, 3}, {0xA5, 8}, {0x1234, 16},
		{0x9E8B33, 24}, {0xFFFFFFFF, 32}, {0x80000001, 32},
	}

	for _, tt := range tests {
		buf := make([]byte, tt.width)
		if err := HostToAir(buf, tt.value, tt.width); err != nil {
			t.Fatalf("HostToAir(%x, %d) error: %v", tt.value, tt.width, err)
		}
		got, err := AirToHost(buf, tt.width)
		if err != nil {
			t.Fatalf("AirToHost error: %v", err)
		}
		if got != tt.value {
			t.Errorf("round trip %x/%d: got %x", tt.value, tt.width, got)
		}
	}
}

func TestAirToHostOrder(t *testing.T) {
	// bit 0 on air is the least significant bit
	got, err := AirToHost([]byte{1, 0, 0, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x1 {
		t.Errorf("got %x, want 1", got)
	}

	got8, err := AirToHost8([]byte{0, 0, 0, 0, 0, 0, 0, 1}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got8 != 0x80 {
		t.Errorf("got %x, want 80", got8)
	}

	got16, err := AirToHost16([]byte{1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, 16)
	if err != nil {
		t.Fatal(err)
	}
	if got16 != 0x8003 {
		t.Errorf("got %x, want 8003", got16)
	}
}

func TestHostToAirOverwritesExactlyWidth(t *testing.T) {
	buf := []byte{9, 9, 9, 9, 9, 9}
	if err := HostToAir(buf, 0xF, 4); err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 1, 1, 1, 9, 9}
	if !bytes.Equal(buf, want) {
		t.Errorf("got %v, want %v", buf, want)
	}
}

func TestBitOrderErrors(t *testing.T) {
	if _, err := AirToHost(make([]byte, 40), 33); !errors.Is(err, ErrWidth) {
		t.Errorf("width 33: expected ErrWidth, got %v", err)
	}
	if _, err := AirToHost(make([]byte, 4), 8); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short buffer: expected ErrShortBuffer, got %v", err)
	}
	if _, err := AirToHost8(make([]byte, 16), 9); !errors.Is(err, ErrWidth) {
		t.Errorf("AirToHost8 width 9: expected ErrWidth, got %v", err)
	}
	if _, err := AirToHost16(make([]byte, 32), 17); !errors.Is(err, ErrWidth) {
		t.Errorf("AirToHost16 width 17: expected ErrWidth, got %v", err)
	}
	if err := HostToAir(make([]byte, 2), 0, 3); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("HostToAir short: expected ErrShortBuffer, got %v", err)
	}
	if err := HostToAir(make([]byte, 64), 0, 40); !errors.Is(err, ErrWidth) {
		t.Errorf("HostToAir width 40: expected ErrWidth, got %v", err)
	}
}

func TestReverse8(t *testing.T) {
	tests := map[byte]byte{
		0x00: 0x00, 0x01: 0x80, 0x80: 0x01, 0x0F: 0xF0, 0x9E: 0x79, 0xFF: 0xFF,
	}
	for in, want := range tests {
		if got := Reverse8(in); got != want {
			t.Errorf("Reverse8(%02x) = %02x, want %02x", in, got, want)
		}
		if Reverse8(Reverse8(in)) != in {
			t.Errorf("Reverse8 not an involution for %02x", in)
		}
	}
}

func TestPackUnpack(t *testing.T) {
	packed := []byte{0x54, 0x75, 0xC5}
	bits := Unpack(packed)
	if len(bits) != 24 {
		t.Fatalf("Unpack length = %d, want 24", len(bits))
	}
	// 0x54 = 0101 0100
	want := []byte{0, 1, 0, 1, 0, 1, 0, 0}
	if !bytes.Equal(bits[:8], want) {
		t.Errorf("Unpack first byte = %v, want %v", bits[:8], want)
	}
	if got := Pack(bits); !bytes.Equal(got, packed) {
		t.Errorf("Pack(Unpack) = %x, want %x", got, packed)
	}

	// partial byte pads with zeros
	if got := Pack([]byte{1, 1, 1}); !bytes.Equal(got, []byte{0xE0}) {
		t.Errorf("Pack partial = %x, want e0", got)
	}
}
